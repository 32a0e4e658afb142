package surgery

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("surgery not found")
	ErrNameRequired = errors.New("name is required")
	ErrSlugTaken    = errors.New("slug already in use")
)

// Surgery maps to the surgery table. A surgery is one GP practice and the unit
// every symptom customisation and review status hangs off.
type Surgery struct {
	ID                        uuid.UUID  `db:"id" json:"id"`
	Name                      string     `db:"name" json:"name"`
	Slug                      string     `db:"slug" json:"slug"`
	RequiresClinicalReview    bool       `db:"requires_clinical_review" json:"requiresClinicalReview"`
	LastClinicalReviewAt      *time.Time `db:"last_clinical_review_at" json:"lastClinicalReviewAt,omitempty"`
	LastClinicalReviewerID    *string    `db:"last_clinical_reviewer_id" json:"lastClinicalReviewerId,omitempty"`
	LastClinicalReviewerEmail *string    `db:"last_clinical_reviewer_email" json:"lastClinicalReviewerEmail,omitempty"`
	CreatedAt                 time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt                 time.Time  `db:"updated_at" json:"updatedAt"`
}
