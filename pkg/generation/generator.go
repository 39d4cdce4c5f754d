// Package generation turns a natural-language query into SQL and its result
// rows. It is consulted on cache misses.
package generation

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// Generator resolves a natural-language query under an execution context.
type Generator interface {
	Generate(ctx context.Context, naturalQuery string, qctx models.QueryContext) (*GenerationResult, error)
}

// GenerationResult is the output of a successful generation.
type GenerationResult struct {
	SQL              string
	ResultData       []map[string]any
	ResultMetadata   models.ResultMetadata
	TokensUsed       int
	ProcessingTimeMs int64 // Time spent waiting on the model
	IntentAnalysis   map[string]any
}

// GenerationError is a classified generation failure. Type is one of
// models.ErrorTypeAI, models.ErrorTypeSQL or models.ErrorTypePermission.
type GenerationError struct {
	Type    models.ExecutionErrorType
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError creates a classified generation error.
func NewGenerationError(errType models.ExecutionErrorType, message string, cause error) *GenerationError {
	return &GenerationError{Type: errType, Message: message, Cause: cause}
}
