package surgery

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signpost/signpost/pkg/slug"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "surgery").Logger()}
}

func normalise(s *Surgery) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return ErrNameRequired
	}
	s.Slug = slug.Make(s.Slug)
	if s.Slug == "" {
		s.Slug = slug.Make(s.Name)
	}
	return nil
}

func (s *Service) CreateSurgery(ctx context.Context, sg *Surgery) error {
	if err := normalise(sg); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, sg); err != nil {
		return err
	}
	s.logger.Info().Str("surgery_id", sg.ID.String()).Str("slug", sg.Slug).Msg("surgery created")
	return nil
}

func (s *Service) GetSurgery(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateSurgery(ctx context.Context, sg *Surgery) error {
	if err := normalise(sg); err != nil {
		return err
	}
	return s.repo.Update(ctx, sg)
}

func (s *Service) DeleteSurgery(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("surgery_id", id.String()).Msg("surgery deleted")
	return nil
}

func (s *Service) ListSurgeries(ctx context.Context, limit, offset int) ([]*Surgery, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// MarkReviewed records who last completed a full clinical review of the
// surgery's symptom library.
func (s *Service) MarkReviewed(ctx context.Context, id uuid.UUID, reviewerID, reviewerEmail string, at time.Time) error {
	return s.repo.MarkReviewed(ctx, id, reviewerID, reviewerEmail, at)
}
