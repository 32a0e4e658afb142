package symptom

import (
	"context"

	"github.com/google/uuid"
)

type BaseRepository interface {
	List(ctx context.Context) ([]BaseSymptom, error)
	GetByID(ctx context.Context, id string) (*BaseSymptom, error)
	Upsert(ctx context.Context, b *BaseSymptom) error
}

type OverrideRepository interface {
	ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]SymptomOverride, error)
	Upsert(ctx context.Context, o *SymptomOverride) error
	Delete(ctx context.Context, surgeryID uuid.UUID, baseSymptomID string) error
}

type CustomRepository interface {
	ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]CustomSymptom, error)
	GetByID(ctx context.Context, surgeryID uuid.UUID, id string) (*CustomSymptom, error)
	Create(ctx context.Context, c *CustomSymptom) error
	Delete(ctx context.Context, surgeryID uuid.UUID, id string) error
}

type VisibilityRepository interface {
	ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]Visibility, error)
	Set(ctx context.Context, v *Visibility) error
}
