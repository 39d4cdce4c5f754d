// Package cachekey derives the content-addressed keys of the query cache.
//
// A cache key is a pair: the context hash identifies the execution context a
// query runs under, and the query hash identifies the normalized query text
// within that context. Both are deterministic and fixed-length.
package cachekey

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// Separator joins the normalized query and the context hash before digesting.
const Separator = "|"

// Hash lengths in hex characters.
const (
	QueryHashLength   = 32 // MD5
	ContextHashLength = 64 // SHA-256
)

// NormalizeQuery lower-cases the query and trims surrounding whitespace.
func NormalizeQuery(naturalQuery string) string {
	return strings.ToLower(strings.TrimSpace(naturalQuery))
}

// DeriveQueryHash returns the cache key for a query under the given context hash.
func DeriveQueryHash(naturalQuery, contextHash string) string {
	sum := md5.Sum([]byte(NormalizeQuery(naturalQuery) + Separator + contextHash))
	return hex.EncodeToString(sum[:])
}

// DeriveContextHash returns the hash of a context. Key order does not affect the result.
func DeriveContextHash(qctx models.QueryContext) string {
	canonical := canonicalize(qctx.Map())
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Derive returns both hashes for a query and its context.
func Derive(naturalQuery string, qctx models.QueryContext) (queryHash, contextHash string) {
	contextHash = DeriveContextHash(qctx)
	return DeriveQueryHash(naturalQuery, contextHash), contextHash
}

// canonicalize produces a deterministic JSON representation of v, sorting
// the keys of every nested object. Values that cannot be marshaled encode
// as null so hashing never fails.
func canonicalize(v any) []byte {
	switch val := v.(type) {
	case nil:
		return []byte("null")
	case map[string]any:
		return canonicalizeMap(val)
	case models.QueryContext:
		return canonicalizeMap(val.Map())
	case []any:
		return canonicalizeSlice(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return []byte("null")
		}
		return b
	}
}

func canonicalizeMap(m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte("{")
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		keyBytes, _ := json.Marshal(k)
		out = append(out, keyBytes...)
		out = append(out, ':')
		out = append(out, canonicalize(m[k])...)
	}
	return append(out, '}')
}

func canonicalizeSlice(s []any) []byte {
	out := []byte("[")
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, canonicalize(v)...)
	}
	return append(out, ']')
}
