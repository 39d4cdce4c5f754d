package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/generation"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// ErrorResponse is the JSON body of an IsError tool result. Tool errors
// travel as a successful JSON-RPC response so the calling agent sees the
// code and message.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates an IsError result for an error the caller can act on.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an IsError result with extra context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	data, _ := json.Marshal(ErrorResponse{Error: true, Code: code, Message: message, Details: details})
	result := mcp.NewToolResultText(string(data))
	result.IsError = true
	return result
}

// sqlStateRegex finds a PostgreSQL SQLSTATE in a flattened error message.
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// sqlStateCodes names the SQLSTATEs a caller is most likely to hit.
var sqlStateCodes = map[string]string{
	"42601": "syntax_error",
	"42703": "undefined_column",
	"42P01": "undefined_table",
	"42P02": "undefined_parameter",
	"42501": "insufficient_privilege",
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23502": "not_null_violation",
	"23514": "check_violation",
	"22001": "value_too_long",
	"22003": "numeric_out_of_range",
	"22007": "invalid_datetime",
	"22012": "division_by_zero",
	"22P02": "invalid_input",
}

// sqlStateClassCodes covers the SQLSTATE classes caused by the statement
// itself: data exceptions, integrity violations, syntax or access rules and
// WITH CHECK OPTION.
var sqlStateClassCodes = map[string]string{
	"22": "data_exception",
	"23": "constraint_violation",
	"42": "sql_error",
	"44": "check_option_violation",
}

// mssqlErrorCodes maps SQL Server error numbers raised by bad statements.
var mssqlErrorCodes = map[int32]string{
	102:  "syntax_error",
	156:  "syntax_error",
	207:  "undefined_column",
	208:  "undefined_table",
	229:  "insufficient_privilege",
	241:  "invalid_datetime",
	245:  "invalid_input",
	515:  "not_null_violation",
	547:  "constraint_violation",
	2601: "unique_violation",
	2627: "unique_violation",
	2628: "value_too_long",
	4104: "undefined_column",
	8114: "invalid_input",
	8115: "numeric_out_of_range",
	8134: "division_by_zero",
	8152: "value_too_long",
}

// SQLUserErrorCode classifies err as a statement error from either
// datasource dialect and returns a readable code, or "" when err is a
// server-side failure such as a dropped connection.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateCode(pgErr.Code)
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return mssqlErrorCodes[msErr.Number]
	}
	if m := sqlStateRegex.FindStringSubmatch(err.Error()); m != nil {
		return sqlStateCode(m[1])
	}
	return ""
}

func sqlStateCode(state string) string {
	if code, ok := sqlStateCodes[state]; ok {
		return code
	}
	if len(state) < 2 {
		return ""
	}
	return sqlStateClassCodes[state[:2]]
}

// IsSQLUserError reports whether err came from a statement the caller can
// fix and retry.
func IsSQLUserError(err error) bool {
	return SQLUserErrorCode(err) != ""
}

// wrapperPrefixes are stripped from flattened driver errors.
var wrapperPrefixes = []string{
	"query execution failed: ",
	"failed to execute query: ",
	"execution failed: ",
	"query failed: ",
	"mssql: ",
	"ERROR: ",
}

// ExtractSQLErrorMessage returns the driver's message without SQLSTATE
// suffixes or wrapping prefixes.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Message
	}

	msg, _, _ := strings.Cut(err.Error(), " (SQLSTATE")
	for _, prefix := range wrapperPrefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

// ServiceErrorResult converts a pipeline error into a tool result. Errors
// the caller can act on become IsError results; anything else is returned
// as a Go error so the server reports it as an internal failure.
func ServiceErrorResult(err error) (*mcp.CallToolResult, error) {
	var validationErr *apperrors.ValidationError
	var genErr *generation.GenerationError
	switch {
	case errors.As(err, &validationErr):
		return NewErrorResultWithDetails("validation_error", validationErr.Error(),
			map[string]any{"field": validationErr.Field}), nil
	case errors.Is(err, apperrors.ErrValidation):
		return NewErrorResult("validation_error", err.Error()), nil
	case errors.Is(err, apperrors.ErrReferenceNotFound):
		return NewErrorResult("reference_not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return NewErrorResult("invalid_transition", err.Error()), nil
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult("conflict", err.Error()), nil
	case errors.As(err, &genErr):
		return generationErrorResult(genErr), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewErrorResult("cancelled", "query was cancelled before it completed"), nil
	default:
		return nil, err
	}
}

// generationErrorResult reports a failed generation. SQL failures carry the
// database's own error code when one is available.
func generationErrorResult(genErr *generation.GenerationError) *mcp.CallToolResult {
	if genErr.Type == models.ErrorTypeSQL && IsSQLUserError(genErr.Cause) {
		return NewErrorResultWithDetails(string(genErr.Type), genErr.Message, map[string]any{
			"sql_error_code": SQLUserErrorCode(genErr.Cause),
			"detail":         ExtractSQLErrorMessage(genErr.Cause),
		})
	}
	if genErr.Type == models.ErrorTypeSystem {
		return NewErrorResult(string(genErr.Type), "query generation failed")
	}
	return NewErrorResult(string(genErr.Type), genErr.Message)
}

// IsInputError reports whether err was caused by the caller rather than a
// server failure. Input errors are logged at debug level.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrReferenceNotFound) ||
		errors.Is(err, apperrors.ErrInvalidTransition) {
		return true
	}
	var genErr *generation.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Type == models.ErrorTypePermission || IsSQLUserError(genErr.Cause)
	}
	return IsSQLUserError(err)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
