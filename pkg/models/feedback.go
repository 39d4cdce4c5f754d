package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
)

// LabelUnknown is returned for enum values this version does not recognize.
const LabelUnknown = "unknown"

// ============================================================================
// Feedback Type
// ============================================================================

// FeedbackType categorizes what a user is reporting about a query result.
type FeedbackType string

const (
	FeedbackTypeHelpful    FeedbackType = "helpful"
	FeedbackTypeIncorrect  FeedbackType = "incorrect"
	FeedbackTypeSlow       FeedbackType = "slow"
	FeedbackTypeConfusing  FeedbackType = "confusing"
	FeedbackTypeSuggestion FeedbackType = "suggestion"
)

// ValidFeedbackTypes contains all valid feedback type values.
var ValidFeedbackTypes = []FeedbackType{
	FeedbackTypeHelpful,
	FeedbackTypeIncorrect,
	FeedbackTypeSlow,
	FeedbackTypeConfusing,
	FeedbackTypeSuggestion,
}

// IsValidFeedbackType checks if the given feedback type is valid.
func IsValidFeedbackType(t FeedbackType) bool {
	for _, v := range ValidFeedbackTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseFeedbackType converts raw input into a FeedbackType.
func ParseFeedbackType(raw string) (FeedbackType, error) {
	t := FeedbackType(raw)
	if !IsValidFeedbackType(t) {
		return "", apperrors.NewValidationError("feedback_type", "%q is not one of helpful, incorrect, slow, confusing, suggestion", raw)
	}
	return t, nil
}

// Label returns a human-readable label for the feedback type.
func (t FeedbackType) Label() string {
	switch t {
	case FeedbackTypeHelpful:
		return "Helpful"
	case FeedbackTypeIncorrect:
		return "Incorrect result"
	case FeedbackTypeSlow:
		return "Too slow"
	case FeedbackTypeConfusing:
		return "Confusing"
	case FeedbackTypeSuggestion:
		return "Suggestion"
	default:
		return LabelUnknown
	}
}

// ============================================================================
// Feedback Status
// ============================================================================

// FeedbackStatus is the moderation state of a feedback record. Every
// transition starts at pending; reviewed, resolved and dismissed accept no
// further transitions.
type FeedbackStatus string

const (
	FeedbackStatusPending   FeedbackStatus = "pending"
	FeedbackStatusReviewed  FeedbackStatus = "reviewed"
	FeedbackStatusResolved  FeedbackStatus = "resolved"
	FeedbackStatusDismissed FeedbackStatus = "dismissed"
)

// ValidFeedbackStatuses contains all valid feedback status values.
var ValidFeedbackStatuses = []FeedbackStatus{
	FeedbackStatusPending,
	FeedbackStatusReviewed,
	FeedbackStatusResolved,
	FeedbackStatusDismissed,
}

// IsValidFeedbackStatus checks if the given status is valid.
func IsValidFeedbackStatus(s FeedbackStatus) bool {
	for _, v := range ValidFeedbackStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseFeedbackStatus converts raw input into a FeedbackStatus.
func ParseFeedbackStatus(raw string) (FeedbackStatus, error) {
	s := FeedbackStatus(raw)
	if !IsValidFeedbackStatus(s) {
		return "", apperrors.NewValidationError("status", "%q is not one of pending, reviewed, resolved, dismissed", raw)
	}
	return s, nil
}

// IsTerminal reports whether the status accepts no further transitions.
func (s FeedbackStatus) IsTerminal() bool {
	return s != FeedbackStatusPending
}

// Label returns a human-readable label for the status.
func (s FeedbackStatus) Label() string {
	switch s {
	case FeedbackStatusPending:
		return "Pending review"
	case FeedbackStatusReviewed:
		return "Reviewed"
	case FeedbackStatusResolved:
		return "Resolved"
	case FeedbackStatusDismissed:
		return "Dismissed"
	default:
		return LabelUnknown
	}
}

// ============================================================================
// Review actions
// ============================================================================

// ReviewAction is a moderator decision on a pending feedback record.
type ReviewAction string

const (
	ReviewActionReview  ReviewAction = "review"
	ReviewActionResolve ReviewAction = "resolve"
	ReviewActionDismiss ReviewAction = "dismiss"
)

// ParseReviewAction converts raw input into a ReviewAction.
func ParseReviewAction(raw string) (ReviewAction, error) {
	switch a := ReviewAction(raw); a {
	case ReviewActionReview, ReviewActionResolve, ReviewActionDismiss:
		return a, nil
	default:
		return "", apperrors.NewValidationError("action", "%q is not one of review, resolve, dismiss", raw)
	}
}

// TargetStatus is the status the action moves a pending record to.
func (a ReviewAction) TargetStatus() FeedbackStatus {
	switch a {
	case ReviewActionReview:
		return FeedbackStatusReviewed
	case ReviewActionResolve:
		return FeedbackStatusResolved
	case ReviewActionDismiss:
		return FeedbackStatusDismissed
	default:
		return ""
	}
}

// ============================================================================
// Rating
// ============================================================================

const (
	MinRating = 1
	MaxRating = 5
)

// Rating levels.
const (
	RatingSatisfied       = "satisfied"
	RatingAverage         = "average"
	RatingUnsatisfied     = "unsatisfied"
	RatingVeryUnsatisfied = "very unsatisfied"
)

// ValidateRating rejects ratings outside 1-5.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return apperrors.NewValidationError("rating", "must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	return nil
}

// RatingLevel maps a 1-5 rating to a satisfaction category.
func RatingLevel(rating int) string {
	switch rating {
	case 4, 5:
		return RatingSatisfied
	case 3:
		return RatingAverage
	case 2:
		return RatingUnsatisfied
	case 1:
		return RatingVeryUnsatisfied
	default:
		return LabelUnknown
	}
}

// ============================================================================
// Feedback
// ============================================================================

// Feedback is a user's judgement of one query execution, moderated by a reviewer.
// Stored in engine_query_feedback. Records are never deleted.
type Feedback struct {
	ID           uuid.UUID      `json:"id"`
	QueryLogID   uuid.UUID      `json:"query_log_id"`
	UserID       string         `json:"user_id"`
	Rating       int            `json:"rating"`
	FeedbackType FeedbackType   `json:"feedback_type"`
	IsHelpful    bool           `json:"is_helpful"`
	Status       FeedbackStatus `json:"status"`

	Comments             *string `json:"comments,omitempty"`
	CorrectedSQL         *string `json:"corrected_sql,omitempty"`
	SuggestedImprovement *string `json:"suggested_improvement,omitempty"`

	// Moderation
	AdminResponse *string    `json:"admin_response,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingLevel returns the satisfaction category of the feedback's rating.
func (f *Feedback) RatingLevel() string {
	return RatingLevel(f.Rating)
}

// FeedbackTransition is the set of fields a review writes atomically.
type FeedbackTransition struct {
	Status        FeedbackStatus
	ReviewerID    string
	AdminResponse *string
	ReviewedAt    time.Time
}
