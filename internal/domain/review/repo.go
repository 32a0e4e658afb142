package review

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]ReviewStatus, error)
	Get(ctx context.Context, surgeryID uuid.UUID, symptomID, ageGroup string) (*ReviewStatus, error)
	Upsert(ctx context.Context, rs *ReviewStatus) error
	// ResetAll sets every existing row of the surgery to PENDING and returns
	// how many rows it touched. It never inserts.
	ResetAll(ctx context.Context, surgeryID uuid.UUID) (int, error)
	// ApproveKeys approves refs in one statement, skipping rows that are no
	// longer PENDING, and returns how many rows it wrote.
	ApproveKeys(ctx context.Context, surgeryID uuid.UUID, refs []SymptomRef, reviewer Reviewer, at time.Time) (int, error)
}
