package cachekey

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "what classes run on monday?", NormalizeQuery("  WHAT CLASSES RUN ON MONDAY?  "))
	assert.Equal(t, "", NormalizeQuery("   \t\n"))
}

func TestDeriveQueryHash_NormalizedInputsCollapse(t *testing.T) {
	ctxHash := DeriveContextHash(models.NewQueryContext(map[string]any{"room": "A"}))

	variants := []string{
		"What classes run on Monday?",
		"  WHAT CLASSES RUN ON MONDAY?  ",
		"what classes run on monday?",
		"\tWhat Classes Run On Monday?\n",
	}

	want := DeriveQueryHash(variants[0], ctxHash)
	for _, v := range variants {
		assert.Equal(t, want, DeriveQueryHash(v, ctxHash), "variant %q", v)
	}
}

func TestDeriveQueryHash_DistinguishesQueriesAndContexts(t *testing.T) {
	ctxA := DeriveContextHash(models.NewQueryContext(map[string]any{"room": "A"}))
	ctxB := DeriveContextHash(models.NewQueryContext(map[string]any{"room": "B"}))

	assert.NotEqual(t, DeriveQueryHash("list students", ctxA), DeriveQueryHash("list courses", ctxA))
	assert.NotEqual(t, DeriveQueryHash("list students", ctxA), DeriveQueryHash("list students", ctxB))
	// Inner whitespace is significant
	assert.NotEqual(t, DeriveQueryHash("list  students", ctxA), DeriveQueryHash("list students", ctxA))
}

func TestDeriveQueryHash_FixedLengthHex(t *testing.T) {
	for _, q := range []string{"", "a", "a very long question about enrollment numbers per term and room"} {
		h := DeriveQueryHash(q, "ctx")
		assert.Len(t, h, QueryHashLength)
		_, err := hex.DecodeString(h)
		assert.NoError(t, err)
	}
}

func TestDeriveContextHash_KeyOrderIndependent(t *testing.T) {
	a := models.NewQueryContext(nil).
		With("room", "A").
		With("term", "fall").
		With("filters", map[string]any{"grade": 3, "active": true})
	b := models.NewQueryContext(nil).
		With("filters", map[string]any{"active": true, "grade": 3}).
		With("term", "fall").
		With("room", "A")

	ha := DeriveContextHash(a)
	hb := DeriveContextHash(b)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, ContextHashLength)
}

func TestDeriveContextHash_ValuesMatter(t *testing.T) {
	a := models.NewQueryContext(map[string]any{"room": "A"})
	b := models.NewQueryContext(map[string]any{"room": "a"})
	c := models.NewQueryContext(map[string]any{"room": []any{"A"}})

	assert.NotEqual(t, DeriveContextHash(a), DeriveContextHash(b))
	assert.NotEqual(t, DeriveContextHash(a), DeriveContextHash(c))
}

func TestDeriveContextHash_EmptyAndNilEqual(t *testing.T) {
	var zero models.QueryContext
	empty := models.NewQueryContext(map[string]any{})
	assert.Equal(t, DeriveContextHash(zero), DeriveContextHash(empty))
}

func TestDerive_ConsistentWithParts(t *testing.T) {
	qctx := models.NewQueryContext(map[string]any{"room": "A"})
	qh, ch := Derive("What classes run on Monday?", qctx)

	require.Equal(t, DeriveContextHash(qctx), ch)
	assert.Equal(t, DeriveQueryHash("what classes run on monday?", ch), qh)
}

func TestCanonicalize_NestedSorted(t *testing.T) {
	got := canonicalize(map[string]any{
		"b": []any{map[string]any{"z": 1, "y": 2}},
		"a": nil,
	})
	assert.Equal(t, `{"a":null,"b":[{"y":2,"z":1}]}`, string(got))
}
