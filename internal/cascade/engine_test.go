package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	storeS1 = "3f1c2a9e-5b7d-4e21-9a0f-1c2d3e4f5a61"
	storeS2 = "8d0b6e14-27c3-4f9a-b5e8-6a7c9d1e2f30"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func photoURL(path string) string {
	return storageBase + "/public/store-photos/" + path
}

// newFixture returns a store with every default manifest table created and
// two stores inserted.
func newFixture() *memStore {
	m := newMemStore()
	for _, table := range DefaultManifest().Tables() {
		m.createTable(table)
	}
	m.insert("stores",
		Row{"id": storeS1, "name": "Shibuya", "deleted_at": nil, "updated_at": nil},
		Row{"id": storeS2, "name": "Ikebukuro", "deleted_at": nil, "updated_at": nil},
	)
	return m
}

// seedS1 adds the reference scenario: three attendance rows, one checklist
// with two photographed items for S1 and a stray checklist for S2.
func seedS1(m *memStore) {
	m.insert("attendance",
		Row{"id": "att-1", "store_id": storeS1},
		Row{"id": "att-2", "store_id": storeS1},
		Row{"id": "att-3", "store_id": storeS1},
		Row{"id": "att-4", "store_id": storeS2},
	)
	items := fmt.Sprintf(`[
		{"name": "floor", "before_photo_url": %q, "after_photo_url": %q},
		{"name": "sink", "before_photo_url": %q, "after_photo_url": %q},
		{"name": "copied", "before_photo_url": %q}
	]`,
		photoURL("checklist/"+storeS1+"/floor-before.jpg"),
		photoURL("checklist/"+storeS1+"/floor-after.jpg"),
		photoURL("checklist/"+storeS1+"/sink-before.jpg"),
		photoURL("checklist/"+storeS1+"/sink-after.jpg"),
		photoURL("checklist/"+storeS2+"/floor-before.jpg"),
	)
	m.insert("checklist",
		Row{"id": "chk-1", "store_id": storeS1, "items": items},
		Row{"id": "chk-2", "store_id": storeS2, "items": fmt.Sprintf(`[{"before_photo_url": %q}]`,
			photoURL("checklist/"+storeS2+"/"+storeS1[:8]+".jpg"))},
	)
}

func s1Objects() []string {
	var keys []string
	for _, name := range []string{"floor-before", "floor-after", "sink-before", "sink-after"} {
		keys = append(keys, "store-photos/checklist/"+storeS1+"/"+name+".jpg")
	}
	return keys
}

func newTestEngine(data DataStore, objects ObjectStore) *Engine {
	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return fixedNow }
	return NewEngine(data, objects, DefaultManifest(), cfg, nil)
}

func TestBuildPlanScenario(t *testing.T) {
	data := newFixture()
	seedS1(data)
	engine := newTestEngine(data, nil)

	plan, err := engine.BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)

	assert.Equal(t, storeS1, plan.StoreID)
	assert.Equal(t, "Shibuya", plan.StoreName)
	require.Len(t, plan.Tables, 2)
	assert.Equal(t, TableCount{Table: "attendance", Column: "store_id", Count: 3, SampleIDs: []string{"att-1", "att-2", "att-3"}}, plan.Tables[0])
	assert.Equal(t, TableCount{Table: "checklist", Column: "store_id", Count: 1, SampleIDs: []string{"chk-1"}}, plan.Tables[1])

	require.Len(t, plan.Storage, 4)
	for i, key := range s1Objects() {
		assert.Equal(t, key, plan.Storage[i].Bucket+"/"+plan.Storage[i].Path)
	}
	assert.Equal(t, map[string]int{"store-photos": 4}, plan.StorageByBucket)
}

func TestBuildPlanDedupesAcrossTables(t *testing.T) {
	data := newFixture()
	shared := photoURL(storeS1 + "/shared.jpg")
	data.insert("issues", Row{"id": "i1", "store_id": storeS1, "photo_url": shared, "photo_urls": `["` + shared + `"]`})
	data.insert("cleaning_photos", Row{"id": "c1", "store_id": storeS1, "photo_url": shared})

	plan, err := newTestEngine(data, nil).BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)
	assert.Len(t, plan.Storage, 1)
	assert.Equal(t, int64(2), plan.TotalRows())
}

func TestBuildPlanSkipsMissingTables(t *testing.T) {
	data := newFixture()
	seedS1(data)
	delete(data.tables, "lost_items")
	delete(data.tables, "receipts")
	data.insert("revenues", Row{"id": "rev-1", "store_id": storeS1})

	plan, err := newTestEngine(data, nil).BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), plan.Count("lost_items"))
	assert.Equal(t, int64(0), plan.Count("receipts"))
	assert.Equal(t, int64(1), plan.Count("revenues"))
	assert.Equal(t, int64(3), plan.Count("attendance"))
}

func TestBuildPlanPropagatesTableErrors(t *testing.T) {
	data := newFixture()
	data.fail["select expenses"] = errors.New("connection reset")

	_, err := newTestEngine(data, nil).BuildPlan(context.Background(), storeS1)
	require.Error(t, err)

	var tableErr *TableError
	require.ErrorAs(t, err, &tableErr)
	assert.Equal(t, "expenses", tableErr.Table)
	assert.Equal(t, "store_id", tableErr.Column)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestBuildPlanEmptyStoreID(t *testing.T) {
	_, err := newTestEngine(newFixture(), nil).BuildPlan(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyStoreID)
}

func TestDryRunNeverMutates(t *testing.T) {
	data := newFixture()
	seedS1(data)
	objects := newMemObjects(s1Objects()...)
	engine := newTestEngine(data, objects)

	result, err := engine.Delete(context.Background(), storeS1, true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	require.NotNil(t, result.Plan)
	assert.True(t, result.Plan.DryRun)
	assert.Nil(t, result.Summary)
	for _, tc := range result.Plan.Tables {
		assert.Positive(t, tc.Count, tc.Table)
	}

	assert.Empty(t, data.mutations())
	assert.Empty(t, objects.removed)
	assert.Len(t, data.tables["attendance"], 4)
}

func TestDryRunEmptyStore(t *testing.T) {
	data := newFixture()
	data.insert("stores", Row{"id": "empty-store", "deleted_at": nil})

	result, err := newTestEngine(data, nil).Delete(context.Background(), "empty-store", true)
	require.NoError(t, err)
	assert.True(t, result.Success)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"dryRun": true,
		"preview": {
			"store_id": "empty-store",
			"dryRun": true,
			"db": [],
			"storage": [],
			"storageByBucket": {}
		}
	}`, string(b))
}

func TestDeleteExecutesInOrder(t *testing.T) {
	data := newFixture()
	seedS1(data)
	data.insert("store_assign", Row{"id": "sa-1", "store_id": storeS1})
	data.insert("store_name_mappings", Row{"id": "m-1", "system_store_id": storeS1})
	data.insert("revenues", Row{"id": "rev-1", "store_id": storeS1}, Row{"id": "rev-2", "store_id": storeS2})
	data.insert("receipts",
		Row{"id": "rc-1", "revenue_id": "rev-1"},
		Row{"id": "rc-2", "revenue_id": "rev-1"},
		Row{"id": "rc-3", "revenue_id": "rev-2"},
	)
	objects := newMemObjects(s1Objects()...)

	result, err := newTestEngine(data, objects).Delete(context.Background(), storeS1, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Summary)

	s := result.Summary
	assert.Equal(t, 4, s.ObjectsRemoved)
	assert.Zero(t, s.ObjectsMissing)
	assert.True(t, s.SoftDeleted)
	assert.Equal(t, map[string]int64{
		"store_assign":        1,
		"attendance":          3,
		"checklist":           1,
		"store_name_mappings": 1,
		"receipts":            2,
		"revenues":            1,
	}, s.RowsDeleted)

	// S2 is untouched.
	assert.Len(t, data.tables["attendance"], 1)
	assert.Len(t, data.tables["checklist"], 1)
	assert.Equal(t, []Row{{"id": "rc-3", "revenue_id": "rev-2"}}, data.tables["receipts"])
	assert.Empty(t, objects.objects)

	muts := data.mutations()
	order := map[string]int{}
	for i, c := range muts {
		if _, seen := order[c.table]; !seen {
			order[c.table] = i
		}
	}
	assert.Less(t, order["receipts"], order["revenues"])
	assert.Less(t, order["store_assign"], order["attendance"])
	assert.Equal(t, call{op: "update", table: "stores"}, muts[len(muts)-1])

	root := data.tables["stores"][0]
	assert.Equal(t, fixedNow, root["deleted_at"])
	assert.Equal(t, fixedNow, root["updated_at"])
	assert.Nil(t, data.tables["stores"][1]["deleted_at"])
}

func TestDeleteIsIdempotent(t *testing.T) {
	data := newFixture()
	seedS1(data)
	objects := newMemObjects(s1Objects()...)
	engine := newTestEngine(data, objects)

	_, err := engine.Delete(context.Background(), storeS1, false)
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	engine.config.Clock = func() time.Time { return later }

	result, err := engine.Delete(context.Background(), storeS1, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Summary.RowsDeleted)
	assert.Zero(t, result.Summary.ObjectsRemoved)
	assert.False(t, result.Summary.SoftDeleted)
	assert.Equal(t, fixedNow, data.tables["stores"][0]["deleted_at"])

	plan, err := engine.BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)
	assert.Empty(t, plan.Tables)
	assert.Empty(t, plan.Storage)
}

func TestDeleteMissingObjectsAreNotFatal(t *testing.T) {
	data := newFixture()
	seedS1(data)
	objects := newMemObjects(s1Objects()[:1]...)

	result, err := newTestEngine(data, objects).Delete(context.Background(), storeS1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.ObjectsRemoved)
	assert.Equal(t, 3, result.Summary.ObjectsMissing)
}

func TestDeleteStorageErrorAbortsBeforeRows(t *testing.T) {
	data := newFixture()
	seedS1(data)
	objects := newMemObjects(s1Objects()...)
	objects.fail[s1Objects()[1]] = errors.New("503 slow down")

	_, err := newTestEngine(data, objects).Delete(context.Background(), storeS1, false)
	require.Error(t, err)

	var objErr *ObjectError
	require.ErrorAs(t, err, &objErr)
	assert.Equal(t, "store-photos", objErr.Bucket)
	assert.Empty(t, data.mutations())
	assert.Nil(t, data.tables["stores"][0]["deleted_at"])
}

func TestDeleteWithoutObjectStore(t *testing.T) {
	data := newFixture()
	seedS1(data)

	_, err := newTestEngine(data, nil).Delete(context.Background(), storeS1, false)
	assert.ErrorIs(t, err, ErrNoObjectStore)
	assert.Empty(t, data.mutations())

	// Stores without media need no object store.
	data.insert("stores", Row{"id": "no-media", "deleted_at": nil})
	data.insert("expenses", Row{"id": "e-1", "store_id": "no-media"})
	result, err := newTestEngine(data, nil).Delete(context.Background(), "no-media", false)
	require.NoError(t, err)
	assert.True(t, result.Summary.SoftDeleted)
}

func TestDeleteTableErrorLeavesRootAndIsRetryable(t *testing.T) {
	data := newFixture()
	seedS1(data)
	data.insert("store_assign", Row{"id": "sa-1", "store_id": storeS1})
	data.fail["delete attendance"] = errors.New("deadlock detected")
	objects := newMemObjects(s1Objects()...)
	engine := newTestEngine(data, objects)

	_, err := engine.Delete(context.Background(), storeS1, false)
	require.Error(t, err)

	var tableErr *TableError
	require.ErrorAs(t, err, &tableErr)
	assert.Equal(t, "delete", tableErr.Op)
	assert.Equal(t, "attendance", tableErr.Table)
	assert.Equal(t, "store_id", tableErr.Column)
	assert.Nil(t, data.tables["stores"][0]["deleted_at"])
	assert.Empty(t, data.tables["store_assign"])

	delete(data.fail, "delete attendance")
	result, err := engine.Delete(context.Background(), storeS1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Summary.RowsDeleted["attendance"])
	assert.Equal(t, 0, result.Summary.ObjectsRemoved)
	assert.Equal(t, 4, result.Summary.ObjectsMissing)
	assert.True(t, result.Summary.SoftDeleted)
}

func TestIndirectPlanEntry(t *testing.T) {
	data := newFixture()
	data.insert("revenues", Row{"id": "rev-1", "store_id": storeS1})
	data.insert("receipts", Row{"id": "rc-1", "revenue_id": "rev-1"}, Row{"id": "rc-2", "revenue_id": "rev-1"})

	plan, err := newTestEngine(data, nil).BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)
	require.Len(t, plan.Tables, 2)
	assert.Equal(t, TableCount{Table: "receipts", Column: "revenue_id (via revenues)", Count: 2}, plan.Tables[0])
	assert.Equal(t, "revenues", plan.Tables[1].Table)
	assert.Equal(t, int64(1), plan.Tables[1].Count)
}

func TestIndirectPlanWithNonIDParentKey(t *testing.T) {
	manifest := Manifest{
		Root: DefaultManifest().Root,
		Indirect: []Indirect{{
			Table:        "receipts",
			Column:       "revenue_code",
			Parent:       "revenues",
			ParentKey:    "rev_code",
			ParentColumn: "store_id",
		}},
	}
	data := newFixture()
	data.insert("revenues",
		Row{"id": "rev-1", "rev_code": "R-100", "store_id": storeS1},
		Row{"id": "rev-2", "rev_code": "R-200", "store_id": storeS2},
	)
	data.insert("receipts",
		Row{"id": "rc-1", "revenue_code": "R-100"},
		Row{"id": "rc-2", "revenue_code": "R-100"},
		Row{"id": "rc-3", "revenue_code": "R-200"},
	)

	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return fixedNow }
	engine := NewEngine(data, nil, manifest, cfg, nil)

	plan, err := engine.BuildPlan(context.Background(), storeS1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), plan.Count("receipts"))
	assert.Equal(t, int64(1), plan.Count("revenues"))
	assert.Equal(t, []string{"rev-1"}, plan.Tables[1].SampleIDs)

	result, err := engine.Delete(context.Background(), storeS1, false)
	require.NoError(t, err)
	assert.Equal(t, plan.Count("receipts"), result.Summary.RowsDeleted["receipts"])
	assert.Len(t, data.tables["receipts"], 1)
}

func TestChunk(t *testing.T) {
	values := make([]any, 1203)
	batches := chunk(values, 500)
	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 203)
	assert.Nil(t, chunk(nil, 500))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Concurrency: 100, SampleSize: -1}
	cfg.validate()
	assert.Equal(t, 32, cfg.Concurrency)
	assert.Equal(t, 0, cfg.SampleSize)
	assert.NotNil(t, cfg.Clock)
}
