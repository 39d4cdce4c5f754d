package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
)

func TestComplexityLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, ComplexitySimple},
		{3, ComplexitySimple},
		{4, ComplexityMedium},
		{6, ComplexityMedium},
		{7, ComplexityComplex},
		{9, ComplexityComplex},
		{10, ComplexityVeryComplex},
		{42, ComplexityVeryComplex},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ComplexityLevel(tt.score), "score %d", tt.score)
	}
}

func TestPerformanceLevel(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{-5, PerformanceExcellent},
		{0, PerformanceExcellent},
		{100, PerformanceExcellent},
		{101, PerformanceGood},
		{500, PerformanceGood},
		{501, PerformanceAverage},
		{1000, PerformanceAverage},
		{1001, PerformanceSlow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PerformanceLevel(tt.ms), "ms %d", tt.ms)
	}
}

func TestQueryExecutionLog_Levels(t *testing.T) {
	log := &QueryExecutionLog{QueryComplexity: 5, ExecutionTimeMs: 1500}
	assert.Equal(t, ComplexityMedium, log.ComplexityLevel())
	assert.Equal(t, PerformanceSlow, log.PerformanceLevel())
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusPending.IsTerminal())
	assert.True(t, ExecutionStatusSuccess.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
}

func TestParseExecutionStatus(t *testing.T) {
	s, err := ParseExecutionStatus("success")
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusSuccess, s)

	_, err = ParseExecutionStatus("running")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "execution_status")
}

func TestParseExecutionErrorType(t *testing.T) {
	et, err := ParseExecutionErrorType("ai_error")
	require.NoError(t, err)
	assert.Equal(t, ErrorTypeAI, et)

	_, err = ParseExecutionErrorType("network_error")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}
