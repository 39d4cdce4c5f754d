// Package jsonutil decodes JSON produced by LLMs, which often returns the
// right value in the wrong shape.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting
// numbers and booleans where a string was asked for. Returns empty string
// for null or empty input; objects and arrays come back as raw JSON.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleString is a string field that tolerates non-string JSON scalars.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexibleString) UnmarshalJSON(raw []byte) error {
	*s = FlexibleString(FlexibleStringValue(raw))
	return nil
}

// FlexibleStringSlice is a []string field that also accepts a single string
// (split on commas) or an array of mixed scalars. Blank items are dropped.
type FlexibleStringSlice []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexibleStringSlice) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		*s = nil
		return nil
	}

	var items []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decode string list: %w", err)
		}
	} else {
		for _, part := range strings.Split(FlexibleStringValue(raw), ",") {
			b, _ := json.Marshal(part)
			items = append(items, b)
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(FlexibleStringValue(item)); v != "" {
			out = append(out, v)
		}
	}
	*s = out
	return nil
}
