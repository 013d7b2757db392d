package cascade

import (
	"net/url"
	"regexp"
	"strings"
)

// storageURLPattern matches managed object URLs:
// .../storage/v1/object/(public|sign)/{bucket}/{path}[?query]
var storageURLPattern = regexp.MustCompile(`/storage/v1/object/(?:public|sign)/([^/]+)/(.+?)(?:\?|$)`)

// ObjectRef identifies one object in the object store.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

func (r ObjectRef) key() string {
	return r.Bucket + "/" + r.Path
}

// ParseStorageURL extracts the bucket and decoded path from a managed storage URL.
// It reports false for empty, foreign or malformed URLs.
func ParseStorageURL(raw string) (ObjectRef, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ObjectRef{}, false
	}
	m := storageURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return ObjectRef{}, false
	}
	path, err := url.PathUnescape(m[2])
	if err != nil || path == "" {
		return ObjectRef{}, false
	}
	return ObjectRef{Bucket: m[1], Path: path}, true
}

// CollectStoragePaths parses every URL and keeps the objects whose path contains
// scopeID, deduplicated by bucket and path in first-seen order.
// An empty scopeID yields nothing.
func CollectStoragePaths(urls []string, scopeID string) []ObjectRef {
	if scopeID == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var refs []ObjectRef
	for _, u := range urls {
		ref, ok := ParseStorageURL(u)
		if !ok {
			continue
		}
		if !strings.Contains(ref.Path, scopeID) {
			continue
		}
		if _, dup := seen[ref.key()]; dup {
			continue
		}
		seen[ref.key()] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// dedupeObjects removes repeated refs, preserving order.
func dedupeObjects(refs []ObjectRef) []ObjectRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]ObjectRef, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.key()]; dup {
			continue
		}
		seen[ref.key()] = struct{}{}
		out = append(out, ref)
	}
	return out
}
