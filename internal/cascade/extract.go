package cascade

import (
	"encoding/json"
	"strings"
)

// MediaExtractor returns every candidate storage URL held by a row.
// Implementations never fail: missing, null or malformed values yield nothing.
type MediaExtractor interface {
	URLs(row Row) []string
}

// Fields reads URLs from scalar string columns.
type Fields []string

func (f Fields) URLs(row Row) []string {
	var urls []string
	for _, col := range f {
		if s, ok := stringValue(row[col]); ok {
			urls = append(urls, s)
		}
	}
	return urls
}

// JSONStrings reads a column holding a JSON array of URL strings.
type JSONStrings string

func (c JSONStrings) URLs(row Row) []string {
	var urls []string
	for _, v := range jsonArray(row[string(c)]) {
		if s, ok := stringValue(v); ok {
			urls = append(urls, s)
		}
	}
	return urls
}

// JSONItems reads a column holding a JSON array of objects, collecting the
// named URL fields of each item.
type JSONItems struct {
	Column string
	Fields []string
}

func (j JSONItems) URLs(row Row) []string {
	var urls []string
	for _, item := range jsonArray(row[j.Column]) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, f := range j.Fields {
			if s, ok := stringValue(obj[f]); ok {
				urls = append(urls, s)
			}
		}
	}
	return urls
}

// Combine concatenates the URLs of several extractors.
type Combine []MediaExtractor

func (c Combine) URLs(row Row) []string {
	var urls []string
	for _, e := range c {
		if e == nil {
			continue
		}
		urls = append(urls, e.URLs(row)...)
	}
	return urls
}

func stringValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case *string:
		if t == nil {
			return "", false
		}
		s = *t
	case []byte:
		s = string(t)
	case *any:
		if t == nil {
			return "", false
		}
		return stringValue(*t)
	default:
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// jsonArray normalises a JSON array column. Drivers hand these back as text,
// bytes or already-decoded slices depending on the dialect.
func jsonArray(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case string:
		return decodeArray([]byte(t))
	case *string:
		if t == nil {
			return nil
		}
		return decodeArray([]byte(*t))
	case []byte:
		return decodeArray(t)
	case *any:
		if t == nil {
			return nil
		}
		return jsonArray(*t)
	case json.Marshaler:
		b, err := t.MarshalJSON()
		if err != nil {
			return nil
		}
		return decodeArray(b)
	}
	return nil
}

func decodeArray(b []byte) []any {
	var out []any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
