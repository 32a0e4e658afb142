package symptom

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signpost/signpost/pkg/slug"
)

// CountsInvalidator drops review tallies computed from the catalog. Review
// counts cover every symptom, so changes to the set of symptoms must reach
// them.
type CountsInvalidator interface {
	InvalidateCounts(ctx context.Context, surgeryID uuid.UUID)
	InvalidateAllCounts(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateCounts(context.Context, uuid.UUID) {}
func (nopInvalidator) InvalidateAllCounts(context.Context)         {}

type Service struct {
	base       BaseRepository
	overrides  OverrideRepository
	customs    CustomRepository
	visibility VisibilityRepository
	counts     CountsInvalidator
	logger     zerolog.Logger
}

func NewService(base BaseRepository, overrides OverrideRepository, customs CustomRepository, visibility VisibilityRepository, logger zerolog.Logger) *Service {
	return &Service{
		base:       base,
		overrides:  overrides,
		customs:    customs,
		visibility: visibility,
		counts:     nopInvalidator{},
		logger:     logger.With().Str("component", "symptom").Logger(),
	}
}

func (s *Service) SetCountsInvalidator(ci CountsInvalidator) { s.counts = ci }

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// ListEffective returns the surgery's merged symptom library. Disabled
// symptoms are included only when includeDisabled is set.
func (s *Service) ListEffective(ctx context.Context, surgeryID uuid.UUID, includeDisabled bool) ([]EffectiveSymptom, error) {
	base, err := s.base.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list base symptoms: %w", err)
	}
	overrides, err := s.overrides.ListBySurgery(ctx, surgeryID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	customs, err := s.customs.ListBySurgery(ctx, surgeryID)
	if err != nil {
		return nil, fmt.Errorf("list custom symptoms: %w", err)
	}
	visibility, err := s.visibility.ListBySurgery(ctx, surgeryID)
	if err != nil {
		return nil, fmt.Errorf("list visibility: %w", err)
	}
	return Resolve(base, overrides, customs, visibility, includeDisabled), nil
}

// Find returns the effective symptom with the given review identity, enabled
// or not.
func (s *Service) Find(ctx context.Context, surgeryID uuid.UUID, id, ageGroup string) (*EffectiveSymptom, error) {
	all, err := s.ListEffective(ctx, surgeryID, true)
	if err != nil {
		return nil, err
	}
	key := Key(id, ageGroup)
	for i := range all {
		if all[i].Key() == key {
			return &all[i], nil
		}
	}
	return nil, ErrSymptomNotFound
}

func (s *Service) IsEnabled(ctx context.Context, surgeryID uuid.UUID, id, ageGroup string) (bool, error) {
	sym, err := s.Find(ctx, surgeryID, id, ageGroup)
	if err != nil {
		return false, err
	}
	return sym.IsEnabled, nil
}

// SetVisibility enables or disables one symptom for a surgery. The target must
// exist; ENABLE_EXISTING never creates a symptom.
func (s *Service) SetVisibility(ctx context.Context, change VisibilityChange) (*Visibility, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}
	if change.SurgeryID == uuid.Nil {
		return nil, invalidInput("surgeryId is required")
	}

	v := &Visibility{SurgeryID: change.SurgeryID, IsEnabled: change.Action == ActionEnableExisting}
	var target string
	if change.BaseSymptomID != nil && *change.BaseSymptomID != "" {
		if _, err := s.base.GetByID(ctx, *change.BaseSymptomID); err != nil {
			return nil, err
		}
		v.BaseSymptomID = change.BaseSymptomID
		target = *change.BaseSymptomID
	} else {
		if _, err := s.customs.GetByID(ctx, change.SurgeryID, *change.CustomSymptomID); err != nil {
			return nil, err
		}
		v.CustomSymptomID = change.CustomSymptomID
		target = *change.CustomSymptomID
	}

	if err := s.visibility.Set(ctx, v); err != nil {
		return nil, fmt.Errorf("set visibility: %w", err)
	}
	s.logger.Info().
		Str("surgery_id", change.SurgeryID.String()).
		Str("symptom_id", target).
		Str("action", string(change.Action)).
		Msg("symptom visibility changed")
	return v, nil
}

// CreateCustom stores a surgery-only symptom. A caller-chosen id must not
// collide with the base library, since review rows are keyed by id and age
// group alone.
func (s *Service) CreateCustom(ctx context.Context, c *CustomSymptom) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalidInput("name is required")
	}
	if c.SurgeryID == uuid.Nil {
		return invalidInput("surgeryId is required")
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID != "" {
		_, err := s.base.GetByID(ctx, c.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrIDTaken, c.ID)
		case !errors.Is(err, ErrSymptomNotFound):
			return fmt.Errorf("check base symptom id: %w", err)
		}
	}
	c.Slug = slug.Make(c.Slug)
	if c.Slug == "" {
		c.Slug = slug.Make(c.Name)
	}
	if err := s.customs.Create(ctx, c); err != nil {
		return err
	}
	s.counts.InvalidateCounts(ctx, c.SurgeryID)
	s.logger.Info().Str("surgery_id", c.SurgeryID.String()).Str("symptom_id", c.ID).Msg("custom symptom created")
	return nil
}

func (s *Service) DeleteCustom(ctx context.Context, surgeryID uuid.UUID, id string) error {
	if err := s.customs.Delete(ctx, surgeryID, id); err != nil {
		return err
	}
	s.counts.InvalidateCounts(ctx, surgeryID)
	return nil
}

// SaveOverride stores per-surgery replacements for a base symptom's fields.
func (s *Service) SaveOverride(ctx context.Context, o *SymptomOverride) error {
	if o.SurgeryID == uuid.Nil {
		return invalidInput("surgeryId is required")
	}
	if o.BaseSymptomID == "" {
		return invalidInput("baseSymptomId is required")
	}
	if o.Name != nil {
		name := strings.TrimSpace(*o.Name)
		if name == "" {
			return invalidInput("name must not be blank")
		}
		o.Name = &name
	}
	if _, err := s.base.GetByID(ctx, o.BaseSymptomID); err != nil {
		return err
	}
	return s.overrides.Upsert(ctx, o)
}

func (s *Service) DeleteOverride(ctx context.Context, surgeryID uuid.UUID, baseSymptomID string) error {
	return s.overrides.Delete(ctx, surgeryID, baseSymptomID)
}

// SeedBase upserts base library entries and returns how many were written.
func (s *Service) SeedBase(ctx context.Context, items []BaseSymptom) (int, error) {
	for i := range items {
		b := &items[i]
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			return i, fmt.Errorf("entry %d: %w", i, invalidInput("name is required"))
		}
		if b.Slug == "" {
			b.Slug = slug.Make(b.Name)
		}
		// Age-group variants of one symptom share an id.
		if b.ID == "" {
			b.ID = b.Slug
		}
		if err := s.base.Upsert(ctx, b); err != nil {
			return i, fmt.Errorf("entry %d (%s): %w", i, b.ID, err)
		}
	}
	s.counts.InvalidateAllCounts(ctx)
	s.logger.Info().Int("count", len(items)).Msg("base symptoms seeded")
	return len(items), nil
}
