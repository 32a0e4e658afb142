package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signpost/signpost/internal/domain/surgery"
	"github.com/signpost/signpost/internal/domain/symptom"
	"github.com/signpost/signpost/internal/platform/cache"
	"github.com/signpost/signpost/internal/platform/db"
)

// SymptomCatalog is the part of the symptom service the review workflow
// needs. Reviews cover disabled symptoms too.
type SymptomCatalog interface {
	ListEffective(ctx context.Context, surgeryID uuid.UUID, includeDisabled bool) ([]symptom.EffectiveSymptom, error)
	Find(ctx context.Context, surgeryID uuid.UUID, id, ageGroup string) (*symptom.EffectiveSymptom, error)
	SetVisibility(ctx context.Context, change symptom.VisibilityChange) (*symptom.Visibility, error)
}

type SurgeryDirectory interface {
	GetSurgery(ctx context.Context, id uuid.UUID) (*surgery.Surgery, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, reviewerID, reviewerEmail string, at time.Time) error
}

type Service struct {
	repo      Repository
	symptoms  SymptomCatalog
	surgeries SurgeryDirectory
	tx        db.Transactor
	runner    db.Runner
	counts    *CountsCache
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, symptoms SymptomCatalog, surgeries SurgeryDirectory, tx db.Transactor, runner db.Runner, store cache.Store, logger zerolog.Logger) *Service {
	counts := NewCountsCache(store, logger)
	logger = logger.With().Str("component", "review").Logger()
	return &Service{
		repo:      repo,
		symptoms:  symptoms,
		surgeries: surgeries,
		tx:        tx,
		runner:    runner,
		counts:    counts,
		logger:    logger,
		now:       time.Now,
	}
}

// Data is everything the clinical review screen loads in one request.
type Data struct {
	Surgery        *surgery.Surgery           `json:"surgery"`
	Symptoms       []symptom.EffectiveSymptom `json:"symptoms"`
	ReviewStatuses []ReviewStatus             `json:"reviewStatuses"`
	Counts         Counts                     `json:"counts"`
}

func (s *Service) getSurgery(ctx context.Context, surgeryID uuid.UUID) (*surgery.Surgery, error) {
	sg, err := s.surgeries.GetSurgery(ctx, surgeryID)
	if errors.Is(err, surgery.ErrNotFound) {
		return nil, ErrSurgeryNotFound
	}
	return sg, err
}

// reviewable loads the surgery and refuses surgeries that have clinical review
// switched off.
func (s *Service) reviewable(ctx context.Context, surgeryID uuid.UUID) (*surgery.Surgery, error) {
	sg, err := s.getSurgery(ctx, surgeryID)
	if err != nil {
		return nil, err
	}
	if !sg.RequiresClinicalReview {
		return nil, ErrReviewNotRequired
	}
	return sg, nil
}

// LoadData fetches the surgery, its symptoms and its review rows concurrently.
func (s *Service) LoadData(ctx context.Context, surgeryID uuid.UUID) (*Data, error) {
	var (
		sg       *surgery.Surgery
		symptoms []symptom.EffectiveSymptom
		statuses []ReviewStatus
	)
	err := s.runner.Run(ctx,
		func(ctx context.Context) (err error) {
			sg, err = s.getSurgery(ctx, surgeryID)
			return err
		},
		func(ctx context.Context) (err error) {
			symptoms, err = s.symptoms.ListEffective(ctx, surgeryID, true)
			return err
		},
		func(ctx context.Context) (err error) {
			statuses, err = s.repo.ListBySurgery(ctx, surgeryID)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	if symptoms == nil {
		symptoms = []symptom.EffectiveSymptom{}
	}
	if statuses == nil {
		statuses = []ReviewStatus{}
	}

	counts := ComputeCounts(symptoms, NewStatusMap(statuses))
	s.counts.put(ctx, surgeryID, counts)
	return &Data{Surgery: sg, Symptoms: symptoms, ReviewStatuses: statuses, Counts: counts}, nil
}

func (s *Service) load(ctx context.Context, surgeryID uuid.UUID) ([]symptom.EffectiveSymptom, StatusMap, error) {
	symptoms, err := s.symptoms.ListEffective(ctx, surgeryID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("load symptoms: %w", err)
	}
	rows, err := s.repo.ListBySurgery(ctx, surgeryID)
	if err != nil {
		return nil, nil, fmt.Errorf("load review statuses: %w", err)
	}
	return symptoms, NewStatusMap(rows), nil
}

// Counts returns the surgery's review tallies, from cache when possible.
func (s *Service) Counts(ctx context.Context, surgeryID uuid.UUID) (Counts, error) {
	if counts, ok := s.counts.get(ctx, surgeryID); ok {
		return counts, nil
	}
	if _, err := s.getSurgery(ctx, surgeryID); err != nil {
		return Counts{}, err
	}
	symptoms, statuses, err := s.load(ctx, surgeryID)
	if err != nil {
		return Counts{}, err
	}
	counts := ComputeCounts(symptoms, statuses)
	s.counts.put(ctx, surgeryID, counts)
	return counts, nil
}

// Rows resolves the filtered, sorted review list together with the unfiltered
// counts.
func (s *Service) Rows(ctx context.Context, surgeryID uuid.UUID, q RowQuery) ([]Row, Counts, error) {
	if _, err := s.getSurgery(ctx, surgeryID); err != nil {
		return nil, Counts{}, err
	}
	symptoms, statuses, err := s.load(ctx, surgeryID)
	if err != nil {
		return nil, Counts{}, err
	}
	counts := ComputeCounts(symptoms, statuses)
	s.counts.put(ctx, surgeryID, counts)
	return ResolveRows(symptoms, statuses, q), counts, nil
}

type MutationOptions struct {
	// Cascade also applies the matching visibility change in the same
	// transaction.
	Cascade bool
}

func (s *Service) Approve(ctx context.Context, surgeryID uuid.UUID, symptomID, ageGroup string, reviewer Reviewer, opts MutationOptions) (*MutationResult, error) {
	return s.SetStatus(ctx, StatusChange{
		SurgeryID: surgeryID,
		SymptomID: symptomID,
		AgeGroup:  ageGroup,
		NewStatus: StatusApproved,
		Cascade:   opts.Cascade,
	}, reviewer)
}

func (s *Service) RequestChanges(ctx context.Context, surgeryID uuid.UUID, symptomID, ageGroup string, note *string, reviewer Reviewer, opts MutationOptions) (*MutationResult, error) {
	return s.SetStatus(ctx, StatusChange{
		SurgeryID:  surgeryID,
		SymptomID:  symptomID,
		AgeGroup:   ageGroup,
		NewStatus:  StatusChangesRequired,
		ReviewNote: note,
		Cascade:    opts.Cascade,
	}, reviewer)
}

// SetStatus moves one symptom to any status. The note is only meaningful for
// CHANGES_REQUIRED: approving clears it and moving back to PENDING keeps it.
func (s *Service) SetStatus(ctx context.Context, change StatusChange, reviewer Reviewer) (*MutationResult, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.reviewable(ctx, change.SurgeryID); err != nil {
		return nil, err
	}

	now := s.now()
	result := &MutationResult{}
	var sym *symptom.EffectiveSymptom
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		// Read inside the transaction so the cascade decides on the same
		// visibility it then writes.
		var err error
		sym, err = s.symptoms.Find(ctx, change.SurgeryID, change.SymptomID, change.AgeGroup)
		if err != nil {
			return err
		}
		rs := ReviewStatus{
			SurgeryID:      change.SurgeryID,
			SymptomID:      change.SymptomID,
			AgeGroup:       change.AgeGroup,
			Status:         change.NewStatus,
			LastReviewedAt: &now,
			LastReviewedBy: &reviewer,
		}
		switch change.NewStatus {
		case StatusChangesRequired:
			rs.ReviewNote = change.ReviewNote
		case StatusPending:
			existing, err := s.repo.Get(ctx, change.SurgeryID, change.SymptomID, change.AgeGroup)
			if err != nil && !errors.Is(err, ErrStatusNotFound) {
				return fmt.Errorf("load review status: %w", err)
			}
			if existing != nil {
				rs.ReviewNote = existing.ReviewNote
			}
		}
		if err := s.repo.Upsert(ctx, &rs); err != nil {
			return fmt.Errorf("save review status: %w", err)
		}
		result.ReviewStatus = rs

		if !change.Cascade {
			return nil
		}
		action, ok := cascadeAction(change.NewStatus)
		if !ok {
			return nil
		}
		result.Visibility = VisibilityOutcome{Requested: true, Action: action}
		if sym.IsEnabled == (action == symptom.ActionEnableExisting) {
			return nil
		}
		if _, err := s.symptoms.SetVisibility(ctx, symptom.TargetFor(*sym, change.SurgeryID, action)); err != nil {
			return fmt.Errorf("%s symptom: %w", action, err)
		}
		result.Visibility.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.counts.InvalidateCounts(ctx, change.SurgeryID)
	s.logger.Info().
		Str("surgery_id", change.SurgeryID.String()).
		Str("symptom_key", sym.Key()).
		Str("status", string(change.NewStatus)).
		Str("reviewer_id", reviewer.ID).
		Bool("visibility_applied", result.Visibility.Applied).
		Msg("review status changed")
	return result, nil
}

// ResetAll puts every existing review row of the surgery back to PENDING.
// Symptoms that were never reviewed stay without a row.
func (s *Service) ResetAll(ctx context.Context, surgeryID uuid.UUID) (int, error) {
	if _, err := s.reviewable(ctx, surgeryID); err != nil {
		return 0, err
	}
	updated, err := s.repo.ResetAll(ctx, surgeryID)
	if err != nil {
		return 0, fmt.Errorf("reset review statuses: %w", err)
	}
	s.counts.InvalidateCounts(ctx, surgeryID)
	s.logger.Info().Str("surgery_id", surgeryID.String()).Int("updated", updated).Msg("review statuses reset")
	return updated, nil
}

// BulkApprove approves every symptom currently resolving to PENDING whose name
// contains search. CHANGES_REQUIRED and APPROVED symptoms are left alone.
func (s *Service) BulkApprove(ctx context.Context, surgeryID uuid.UUID, search string, reviewer Reviewer) (int, error) {
	if _, err := s.reviewable(ctx, surgeryID); err != nil {
		return 0, err
	}

	var approved int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		symptoms, statuses, err := s.load(ctx, surgeryID)
		if err != nil {
			return err
		}
		rows := ResolveRows(symptoms, statuses, RowQuery{Filter: FilterPending, Search: search})
		if len(rows) == 0 {
			return nil
		}
		refs := uniqueRefs(rows)
		approved, err = s.repo.ApproveKeys(ctx, surgeryID, refs, reviewer, s.now())
		if err != nil {
			return fmt.Errorf("approve review statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.counts.InvalidateCounts(ctx, surgeryID)
	s.logger.Info().
		Str("surgery_id", surgeryID.String()).
		Str("search", search).
		Int("approved", approved).
		Str("reviewer_id", reviewer.ID).
		Msg("bulk approve")
	return approved, nil
}

// CompleteReview records that reviewer signed off the whole library.
func (s *Service) CompleteReview(ctx context.Context, surgeryID uuid.UUID, reviewer Reviewer) (*surgery.Surgery, error) {
	if _, err := s.reviewable(ctx, surgeryID); err != nil {
		return nil, err
	}
	if err := s.surgeries.MarkReviewed(ctx, surgeryID, reviewer.ID, reviewer.Email, s.now()); err != nil {
		if errors.Is(err, surgery.ErrNotFound) {
			return nil, ErrSurgeryNotFound
		}
		return nil, fmt.Errorf("mark surgery reviewed: %w", err)
	}
	s.counts.InvalidateCounts(ctx, surgeryID)
	s.logger.Info().Str("surgery_id", surgeryID.String()).Str("reviewer_id", reviewer.ID).Msg("clinical review completed")
	return s.getSurgery(ctx, surgeryID)
}

// uniqueRefs collapses rows sharing a review key. A single upsert statement
// may not touch the same row twice.
func uniqueRefs(rows []Row) []SymptomRef {
	seen := make(map[string]struct{}, len(rows))
	refs := make([]SymptomRef, 0, len(rows))
	for _, r := range rows {
		key := symptom.Key(r.Symptom.ID, r.Symptom.AgeGroup)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, SymptomRef{SymptomID: r.Symptom.ID, AgeGroup: r.Symptom.AgeGroup})
	}
	return refs
}
