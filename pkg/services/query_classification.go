package services

import (
	"regexp"
	"strings"
)

// MaxComplexityScore is the upper bound of ScoreComplexity.
const MaxComplexityScore = 10

// Query shapes reported by ClassifyQueryType.
const (
	QueryTypeAggregation = "aggregation"
	QueryTypeLookup      = "lookup"
	QueryTypeReport      = "report"
	QueryTypeExploration = "exploration"
)

var (
	tableRefPattern    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)?)`)
	aggregationPattern = regexp.MustCompile(`\b(COUNT|SUM|AVG|MIN|MAX|ARRAY_AGG|STRING_AGG|BOOL_AND|BOOL_OR)\s*\(`)
	joinPattern        = regexp.MustCompile(`\bJOIN\b`)
	subqueryPattern    = regexp.MustCompile(`\(\s*SELECT\b`)
	windowPattern      = regexp.MustCompile(`\bOVER\s*\(`)
	ctePattern         = regexp.MustCompile(`^\s*WITH\b`)
	setOpPattern       = regexp.MustCompile(`\b(UNION|INTERSECT|EXCEPT)\b`)
)

// ExtractTables returns the distinct tables referenced by FROM and JOIN
// clauses, lower-cased, in order of first appearance.
func ExtractTables(sql string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var tables []string

	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		tableName := strings.ToLower(match[1])
		// Skip subquery aliases and common SQL keywords
		if tableName == "select" || tableName == "lateral" {
			continue
		}
		if !seen[tableName] {
			seen[tableName] = true
			tables = append(tables, tableName)
		}
	}

	return tables
}

func extractAggregations(sqlUpper string) []string {
	matches := aggregationPattern.FindAllStringSubmatch(sqlUpper, -1)
	seen := make(map[string]bool)
	var aggs []string

	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		agg := match[1]
		if !seen[agg] {
			seen[agg] = true
			aggs = append(aggs, agg)
		}
	}

	return aggs
}

// ClassifyQueryType buckets a SELECT by its overall shape.
func ClassifyQueryType(sql string) string {
	sqlUpper := strings.ToUpper(sql)
	if aggregationPattern.MatchString(sqlUpper) || strings.Contains(sqlUpper, "GROUP BY") {
		return QueryTypeAggregation
	}

	hasWhere := strings.Contains(sqlUpper, "WHERE")
	hasLimit := strings.Contains(sqlUpper, "LIMIT") || strings.Contains(sqlUpper, "TOP ")

	// Filtered and bounded: a point lookup
	if hasWhere && hasLimit {
		return QueryTypeLookup
	}

	// Ordered but unbounded: a full report
	if strings.Contains(sqlUpper, "ORDER BY") && !hasLimit {
		return QueryTypeReport
	}

	return QueryTypeExploration
}

// ScoreComplexity rates a SQL statement from 0 to MaxComplexityScore by the
// features it uses. A bare single-table SELECT scores 1.
func ScoreComplexity(sql string) int {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return 0
	}
	sqlUpper := strings.ToUpper(sql)

	score := 1
	if tables := ExtractTables(sql); len(tables) > 1 {
		score += min(len(tables)-1, 2)
	}
	if joins := len(joinPattern.FindAllString(sqlUpper, -1)); joins > 0 {
		score += min(joins, 2)
	}
	if len(extractAggregations(sqlUpper)) > 0 {
		score++
	}
	if strings.Contains(sqlUpper, "GROUP BY") {
		score++
	}
	if strings.Contains(sqlUpper, "HAVING") {
		score++
	}
	if strings.Contains(sqlUpper, "ORDER BY") {
		score++
	}
	if subqueryPattern.MatchString(sqlUpper) {
		score += 2
	}
	if windowPattern.MatchString(sqlUpper) {
		score += 2
	}
	if ctePattern.MatchString(sqlUpper) {
		score += 2
	}
	if setOpPattern.MatchString(sqlUpper) {
		score++
	}

	return min(score, MaxComplexityScore)
}
