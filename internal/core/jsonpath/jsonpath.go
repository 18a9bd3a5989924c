// Package jsonpath provides tolerant accessors over untyped JSON trees.
//
// Scraped pages and third-party APIs return JSON blobs with uncertain
// nesting. Rather than modeling speculative schemas, callers unmarshal into
// interface{} and walk with Get/GetString/GetNumber, which return zero
// values instead of panicking on missing or mistyped fields.
package jsonpath

import "encoding/json"

// Get walks the tree following keys. A string key indexes a map, an int key
// indexes a slice. Returns nil if any step is missing or mistyped.
func Get(root any, keys ...any) any {
	cur := root
	for _, k := range keys {
		switch key := k.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		case int:
			s, ok := cur.([]any)
			if !ok || key < 0 || key >= len(s) {
				return nil
			}
			cur = s[key]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// GetString returns the string at the path, or "" if absent or not a string.
func GetString(root any, keys ...any) string {
	s, _ := Get(root, keys...).(string)
	return s
}

// GetNumber returns the float64 at the path and whether it was present.
// JSON numbers unmarshal as float64; string-encoded numbers are not coerced.
func GetNumber(root any, keys ...any) (float64, bool) {
	n, ok := Get(root, keys...).(float64)
	return n, ok
}

// GetSlice returns the slice at the path, or nil.
func GetSlice(root any, keys ...any) []any {
	s, _ := Get(root, keys...).([]any)
	return s
}

// GetMap returns the map at the path, or nil.
func GetMap(root any, keys ...any) map[string]any {
	m, _ := Get(root, keys...).(map[string]any)
	return m
}

// Parse unmarshals data into an untyped tree. Returns nil on invalid JSON.
func Parse(data []byte) any {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil
	}
	return root
}
