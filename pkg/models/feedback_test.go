package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
)

func TestRatingLevel(t *testing.T) {
	tests := []struct {
		rating int
		want   string
	}{
		{5, RatingSatisfied},
		{4, RatingSatisfied},
		{3, RatingAverage},
		{2, RatingUnsatisfied},
		{1, RatingVeryUnsatisfied},
		{0, LabelUnknown},
		{6, LabelUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RatingLevel(tt.rating), "rating %d", tt.rating)
	}
}

func TestValidateRating(t *testing.T) {
	for r := MinRating; r <= MaxRating; r++ {
		assert.NoError(t, ValidateRating(r))
	}

	for _, r := range []int{-1, 0, 6, 10} {
		err := ValidateRating(r)
		require.Error(t, err, "rating %d", r)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	}
}

func TestFeedbackType_Label(t *testing.T) {
	assert.Equal(t, "Helpful", FeedbackTypeHelpful.Label())
	assert.Equal(t, "Incorrect result", FeedbackTypeIncorrect.Label())
	assert.Equal(t, "Too slow", FeedbackTypeSlow.Label())
	assert.Equal(t, "Confusing", FeedbackTypeConfusing.Label())
	assert.Equal(t, "Suggestion", FeedbackTypeSuggestion.Label())
	assert.Equal(t, LabelUnknown, FeedbackType("praise").Label())
}

func TestFeedbackStatus_Label(t *testing.T) {
	assert.Equal(t, "Pending review", FeedbackStatusPending.Label())
	assert.Equal(t, "Reviewed", FeedbackStatusReviewed.Label())
	assert.Equal(t, "Resolved", FeedbackStatusResolved.Label())
	assert.Equal(t, "Dismissed", FeedbackStatusDismissed.Label())
	assert.Equal(t, LabelUnknown, FeedbackStatus("archived").Label())
}

func TestFeedbackStatus_IsTerminal(t *testing.T) {
	assert.False(t, FeedbackStatusPending.IsTerminal())
	assert.True(t, FeedbackStatusReviewed.IsTerminal())
	assert.True(t, FeedbackStatusResolved.IsTerminal())
	assert.True(t, FeedbackStatusDismissed.IsTerminal())
}

func TestParseFeedbackType(t *testing.T) {
	ft, err := ParseFeedbackType("slow")
	require.NoError(t, err)
	assert.Equal(t, FeedbackTypeSlow, ft)

	_, err = ParseFeedbackType("SLOW")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feedback_type")
}

func TestParseFeedbackStatus(t *testing.T) {
	s, err := ParseFeedbackStatus("dismissed")
	require.NoError(t, err)
	assert.Equal(t, FeedbackStatusDismissed, s)

	_, err = ParseFeedbackStatus("closed")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestParseReviewAction(t *testing.T) {
	a, err := ParseReviewAction("resolve")
	require.NoError(t, err)
	assert.Equal(t, FeedbackStatusResolved, a.TargetStatus())

	a, err = ParseReviewAction("review")
	require.NoError(t, err)
	assert.Equal(t, FeedbackStatusReviewed, a.TargetStatus())

	a, err = ParseReviewAction("dismiss")
	require.NoError(t, err)
	assert.Equal(t, FeedbackStatusDismissed, a.TargetStatus())

	_, err = ParseReviewAction("escalate")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCacheEntry_IsUsable(t *testing.T) {
	now := time.Now()

	valid := &CacheEntry{IsValid: true, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, valid.IsUsable(now))
	assert.False(t, valid.IsExpired(now))

	expired := &CacheEntry{IsValid: true, ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.IsUsable(now))
	assert.True(t, expired.IsExpired(now))

	// expiresAt == now counts as expired
	boundary := &CacheEntry{IsValid: true, ExpiresAt: now}
	assert.False(t, boundary.IsUsable(now))

	invalid := &CacheEntry{IsValid: false, ExpiresAt: now.Add(time.Hour)}
	assert.False(t, invalid.IsUsable(now))
}

func TestCacheEntry_CloneDoesNotShareLastHit(t *testing.T) {
	hit := time.Now()
	e := &CacheEntry{QueryHash: "q", HitCount: 2, LastHitAt: &hit}

	c := e.Clone()
	later := hit.Add(time.Minute)
	*c.LastHitAt = later
	c.HitCount = 3

	assert.Equal(t, hit, *e.LastHitAt)
	assert.Equal(t, int64(2), e.HitCount)
}

func TestQueryContext_SortedAndImmutable(t *testing.T) {
	base := NewQueryContext(map[string]any{"room": "A", "day": "monday"})
	assert.Equal(t, []string{"day", "room"}, base.Keys())

	next := base.With("term", "fall")
	assert.Equal(t, 2, base.Len())
	assert.Equal(t, 3, next.Len())

	v, ok := next.Get("term")
	require.True(t, ok)
	assert.Equal(t, "fall", v)

	data, err := json.Marshal(next)
	require.NoError(t, err)
	assert.Equal(t, `{"day":"monday","room":"A","term":"fall"}`, string(data))

	var decoded QueryContext
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, next.Map(), decoded.Map())
}

func TestQueryContext_ZeroValue(t *testing.T) {
	var c QueryContext
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
