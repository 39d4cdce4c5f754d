package models

import (
	"encoding/json"
	"sort"
)

// QueryContext is the execution context a natural-language query is resolved
// against (room, term, datasource, filters). It is a value type: mutators
// return a copy. Keys() and the JSON encoding are always in lexicographic key
// order, so two contexts with the same pairs serialize identically.
type QueryContext struct {
	values map[string]any
}

// NewQueryContext copies values into a new context. A nil map yields an empty context.
func NewQueryContext(values map[string]any) QueryContext {
	c := QueryContext{values: make(map[string]any, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// With returns a copy of the context with key set to value.
func (c QueryContext) With(key string, value any) QueryContext {
	next := NewQueryContext(c.values)
	next.values[key] = value
	return next
}

// Get returns the value stored under key.
func (c QueryContext) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of keys in the context.
func (c QueryContext) Len() int {
	return len(c.values)
}

// Keys returns the context keys sorted lexicographically.
func (c QueryContext) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying key/value pairs.
func (c QueryContext) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the context as a JSON object with sorted keys.
func (c QueryContext) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	// encoding/json writes map keys in sorted order
	return json.Marshal(c.values)
}

// UnmarshalJSON decodes a JSON object into the context.
func (c *QueryContext) UnmarshalJSON(data []byte) error {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*c = NewQueryContext(values)
	return nil
}
