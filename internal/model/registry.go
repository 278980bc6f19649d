package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnregisteredKey is returned for a class key the registry never assigned.
var ErrUnregisteredKey = errors.New("model: unregistered class key")

// ClassRegistry is a bijection between class keys and dense class indices,
// assigned in first-seen order.
type ClassRegistry struct {
	keys  []string
	index map[string]int
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{index: make(map[string]int)}
}

// Register returns the index for key, assigning the next one if needed.
func (r *ClassRegistry) Register(key string) int {
	if i, ok := r.index[key]; ok {
		return i
	}
	i := len(r.keys)
	r.keys = append(r.keys, key)
	r.index[key] = i
	return i
}

// Lookup returns the index of a registered key.
func (r *ClassRegistry) Lookup(key string) (int, error) {
	i, ok := r.index[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnregisteredKey, key)
	}
	return i, nil
}

// Key returns the key for a class index.
func (r *ClassRegistry) Key(i int) (string, error) {
	if i < 0 || i >= len(r.keys) {
		return "", fmt.Errorf("%w: index %d of %d", ErrUnregisteredKey, i, len(r.keys))
	}
	return r.keys[i], nil
}

// Len is the number of classes.
func (r *ClassRegistry) Len() int { return len(r.keys) }

// Keys returns the keys in index order.
func (r *ClassRegistry) Keys() []string { return append([]string(nil), r.keys...) }

// MarshalJSON encodes the registry as its index-ordered key list.
func (r *ClassRegistry) MarshalJSON() ([]byte, error) {
	keys := r.keys
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(keys)
}

// UnmarshalJSON rebuilds the registry and rejects duplicate keys.
func (r *ClassRegistry) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	next := NewClassRegistry()
	for _, k := range keys {
		if _, dup := next.index[k]; dup {
			return fmt.Errorf("model: duplicate class key %q", k)
		}
		next.Register(k)
	}
	*r = *next
	return nil
}
