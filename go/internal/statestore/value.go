package statestore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// normalize round-trips a value through JSON so the tree only ever holds
// map[string]any, []any and JSON scalars, regardless of what callers pass.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// getAt returns the subtree at path, or nil when absent.
func getAt(root any, path string) any {
	cur := root
	for _, seg := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// setAt writes value at path, creating intermediate maps. A nil value
// deletes the path and prunes any maps left empty.
func setAt(root any, path string, value any) any {
	segs := splitPath(path)
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = make(map[string]any)
	}
	child := setAt(m[segs[0]], strings.Join(segs[1:], "/"), value)
	if child == nil {
		delete(m, segs[0])
		if len(m) == 0 {
			return nil
		}
		return m
	}
	m[segs[0]] = child
	return m
}

// touches reports whether a write at writePath affects the subtree a
// subscriber at subPath observes: one path must be a prefix of the other.
func touches(writePath, subPath string) bool {
	w, s := splitPath(writePath), splitPath(subPath)
	n := len(w)
	if len(s) < n {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		if w[i] != s[i] {
			return false
		}
	}
	return true
}

// snapshotJSON marshals a subtree, mapping an absent subtree to nil.
func snapshotJSON(root any, path string) (json.RawMessage, error) {
	v := getAt(root, path)
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}
