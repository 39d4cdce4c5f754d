package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// InjectionCheckResult describes a value that libinjection flagged.
type InjectionCheckResult struct {
	Path        string // Dotted path of the value, e.g. "filters.region" or "ids[2]"
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string
}

// CheckValueForInjection runs libinjection over a single string value.
// Non-string values cannot carry SQL and return nil.
func CheckValueForInjection(path string, value any) *InjectionCheckResult {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
		return &InjectionCheckResult{
			Path:        path,
			Fingerprint: string(fingerprint),
			Value:       s,
		}
	}
	return nil
}

// CheckContextForInjection checks every string in the context, including
// values nested in maps and slices. Results are ordered by path.
func CheckContextForInjection(qctx models.QueryContext) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, key := range qctx.Keys() {
		v, _ := qctx.Get(key)
		results = walk(key, v, results)
	}
	return results
}

func walk(path string, v any, results []*InjectionCheckResult) []*InjectionCheckResult {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			results = walk(path+"."+k, val[k], results)
		}
	case []any:
		for i, item := range val {
			results = walk(fmt.Sprintf("%s[%d]", path, i), item, results)
		}
	case []string:
		for i, item := range val {
			results = walk(fmt.Sprintf("%s[%d]", path, i), item, results)
		}
	default:
		if r := CheckValueForInjection(path, val); r != nil {
			results = append(results, r)
		}
	}
	return results
}
