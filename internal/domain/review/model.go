package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signpost/signpost/internal/domain/symptom"
)

var (
	ErrInvalidStatus     = errors.New("invalid review status")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrSurgeryNotFound   = errors.New("surgery not found")
	ErrReviewNotRequired = errors.New("surgery does not require clinical review")
	ErrStatusNotFound    = errors.New("review status not found")
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusApproved        Status = "APPROVED"
	StatusChangesRequired Status = "CHANGES_REQUIRED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusChangesRequired:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// State distinguishes a symptom nobody has looked at from one a reviewer put
// back to pending. Both count as pending.
type State string

const (
	StateNotReviewed     State = "NOT_REVIEWED"
	StatePending         State = State(StatusPending)
	StateApproved        State = State(StatusApproved)
	StateChangesRequired State = State(StatusChangesRequired)
)

type Reviewer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ReviewStatus maps to symptom_review_status. There is at most one row per
// (surgery, symptom, age group); symptoms without a row are unreviewed.
type ReviewStatus struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	SurgeryID      uuid.UUID  `db:"surgery_id" json:"surgeryId"`
	SymptomID      string     `db:"symptom_id" json:"symptomId"`
	AgeGroup       string     `db:"age_group" json:"ageGroup,omitempty"`
	Status         Status     `db:"status" json:"status"`
	LastReviewedAt *time.Time `db:"last_reviewed_at" json:"lastReviewedAt,omitempty"`
	LastReviewedBy *Reviewer  `json:"lastReviewedBy,omitempty"`
	ReviewNote     *string    `db:"review_note" json:"reviewNote,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

func (r ReviewStatus) Key() string {
	return symptom.Key(r.SymptomID, r.AgeGroup)
}

// StatusMap indexes review rows by symptom key.
type StatusMap map[string]ReviewStatus

func NewStatusMap(rows []ReviewStatus) StatusMap {
	m := make(StatusMap, len(rows))
	for _, r := range rows {
		m[r.Key()] = r
	}
	return m
}

// Resolve returns the effective status for key. Missing rows resolve to
// PENDING with state NOT_REVIEWED.
func (m StatusMap) Resolve(key string) (Status, State, *ReviewStatus) {
	rs, ok := m[key]
	if !ok {
		return StatusPending, StateNotReviewed, nil
	}
	return rs.Status, State(rs.Status), &rs
}

// SymptomRef names one reviewable symptom/age-group pair.
type SymptomRef struct {
	SymptomID string
	AgeGroup  string
}

// VisibilityOutcome reports the optional visibility change that rides along
// with a status change. Applied is false when nothing was requested or the
// symptom was already in the requested state.
type VisibilityOutcome struct {
	Requested bool           `json:"requested"`
	Applied   bool           `json:"applied"`
	Action    symptom.Action `json:"action,omitempty"`
}

// MutationResult is the updated review row plus what happened to visibility.
// Both writes commit together or not at all.
type MutationResult struct {
	ReviewStatus
	Visibility VisibilityOutcome `json:"visibility"`
}

// StatusChange is the body of POST /admin/review-status.
type StatusChange struct {
	SurgeryID  uuid.UUID `json:"surgeryId"`
	SymptomID  string    `json:"symptomId"`
	AgeGroup   string    `json:"ageGroup"`
	NewStatus  Status    `json:"newStatus"`
	ReviewNote *string   `json:"reviewNote,omitempty"`
	Cascade    bool      `json:"cascade,omitempty"`
}

func (c *StatusChange) Validate() error {
	if c.SurgeryID == uuid.Nil {
		return fmt.Errorf("%w: surgeryId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(c.SymptomID) == "" {
		return fmt.Errorf("%w: symptomId is required", ErrInvalidRequest)
	}
	st, err := ParseStatus(string(c.NewStatus))
	if err != nil {
		return err
	}
	c.NewStatus = st
	return nil
}

// cascadeAction is the visibility change paired with a status: approving
// re-enables, requesting changes disables.
func cascadeAction(st Status) (symptom.Action, bool) {
	switch st {
	case StatusApproved:
		return symptom.ActionEnableExisting, true
	case StatusChangesRequired:
		return symptom.ActionDisable, true
	}
	return "", false
}
