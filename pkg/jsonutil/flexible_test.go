package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string value", json.RawMessage(`"hello"`), "hello"},
		{"integer value", json.RawMessage(`42`), "42"},
		{"float value", json.RawMessage(`3.14`), "3.14"},
		{"large integer preserves precision", json.RawMessage(`9007199254740993`), "9007199254740993"},
		{"negative integer", json.RawMessage(`-7`), "-7"},
		{"boolean true", json.RawMessage(`true`), "true"},
		{"boolean false", json.RawMessage(`false`), "false"},
		{"null value", json.RawMessage(`null`), ""},
		{"empty raw message", json.RawMessage{}, ""},
		{"nil raw message", nil, ""},
		{"empty string", json.RawMessage(`""`), ""},
		{"nested object falls back to raw string", json.RawMessage(`{"key":"value"}`), `{"key":"value"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleString_InStruct(t *testing.T) {
	var got struct {
		Intent FlexibleString `json:"intent"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"intent": 7}`), &got))
	assert.Equal(t, FlexibleString("7"), got.Intent)

	require.NoError(t, json.Unmarshal([]byte(`{"intent": "count students"}`), &got))
	assert.Equal(t, FlexibleString("count students"), got.Intent)
}

func TestFlexibleStringSlice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array of strings", `["students", "rooms"]`, []string{"students", "rooms"}},
		{"single string", `"students"`, []string{"students"}},
		{"comma separated string", `"students, rooms"`, []string{"students", "rooms"}},
		{"mixed scalars", `["students", 2024, true]`, []string{"students", "2024", "true"}},
		{"blank items dropped", `["students", "", "  "]`, []string{"students"}},
		{"empty array", `[]`, []string{}},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Tables FlexibleStringSlice `json:"tables"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"tables": `+tt.input+`}`), &got))
			assert.Equal(t, tt.want, []string(got.Tables))
		})
	}
}

func TestFlexibleStringSlice_InvalidArray(t *testing.T) {
	var s FlexibleStringSlice
	assert.Error(t, s.UnmarshalJSON([]byte(`[1, `)))
}
