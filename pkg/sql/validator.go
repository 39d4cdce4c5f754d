// Package sql checks generated SQL and its inputs before execution.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyStatement indicates the query is blank after normalization.
	ErrEmptyStatement = errors.New("empty SQL statement")
	// ErrNotReadOnly indicates the statement could modify data or schema.
	ErrNotReadOnly = errors.New("only read-only SELECT statements may be executed")
)

// StatementType is the kind of SQL statement, judged by its leading keyword.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementCall    StatementType = "CALL"
	StatementDDL     StatementType = "DDL" // CREATE, ALTER, DROP, TRUNCATE
	StatementUnknown StatementType = "UNKNOWN"
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// lockingClausePattern matches row-locking clauses that turn a SELECT into a writer.
var lockingClausePattern = regexp.MustCompile(`(?i)\bFOR\s+(UPDATE|SHARE|NO\s+KEY\s+UPDATE|KEY\s+SHARE)\b|\bINTO\s+[a-zA-Z_]`)

// DetectStatementType classifies sql by its first keyword. Data-modifying
// CTEs and transaction control report StatementUnknown.
func DetectStatementType(sql string) StatementType {
	normalized := strings.ToUpper(strings.TrimLeft(sql, " \t\r\n("))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return StatementSelect
	case strings.HasPrefix(normalized, "WITH"):
		if modifyingCTEPattern.MatchString(sql) {
			return StatementUnknown
		}
		return StatementSelect
	case strings.HasPrefix(normalized, "INSERT"):
		return StatementInsert
	case strings.HasPrefix(normalized, "UPDATE"):
		return StatementUpdate
	case strings.HasPrefix(normalized, "DELETE"):
		return StatementDelete
	case strings.HasPrefix(normalized, "CALL"), strings.HasPrefix(normalized, "EXEC"):
		return StatementCall
	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return StatementDDL
	default:
		return StatementUnknown
	}
}

// ValidateAndNormalize trims sql, strips one trailing semicolon and rejects
// any remaining semicolon outside string literals.
func ValidateAndNormalize(sql string) (string, error) {
	normalized := strings.TrimSpace(sql)
	normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))

	if normalized == "" {
		return "", ErrEmptyStatement
	}
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// ValidateReadOnly normalizes sql and accepts it only if it is a single
// SELECT (or pure-SELECT CTE) without locking or SELECT INTO.
func ValidateReadOnly(sql string) (string, error) {
	normalized, err := ValidateAndNormalize(sql)
	if err != nil {
		return "", err
	}

	if t := DetectStatementType(normalized); t != StatementSelect {
		return "", fmt.Errorf("%w: got %s", ErrNotReadOnly, t)
	}
	if lockingClausePattern.MatchString(stripStringLiterals(normalized)) {
		return "", fmt.Errorf("%w: locking or INTO clause", ErrNotReadOnly)
	}
	return normalized, nil
}

// hasSemicolonOutsideStrings scans sql, skipping quoted strings and
// identifiers. Both '' and \' escapes are honored inside single quotes.
func hasSemicolonOutsideStrings(sql string) bool {
	var quote rune
	escaped := false

	for _, c := range sql {
		switch {
		case quote == 0:
			switch c {
			case ';':
				return true
			case '\'', '"':
				quote = c
			}
		case escaped:
			escaped = false
		case c == '\\' && quote == '\'':
			escaped = true
		case c == quote:
			// '' re-enters the literal on the next quote
			quote = 0
		}
	}
	return false
}

// stripStringLiterals blanks out single-quoted literals so keyword patterns
// do not match user text.
func stripStringLiterals(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	inString := false
	for _, c := range sql {
		if c == '\'' {
			inString = !inString
			b.WriteRune(c)
			continue
		}
		if inString {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
