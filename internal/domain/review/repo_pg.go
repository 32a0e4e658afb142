package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signpost/signpost/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const statusCols = `id, surgery_id, symptom_id, age_group, status, last_reviewed_at,
	last_reviewed_by_id, last_reviewed_by_email, last_reviewed_by_name, review_note, created_at, updated_at`

func scanStatus(row pgx.Row) (*ReviewStatus, error) {
	var (
		rs                    ReviewStatus
		byID, byEmail, byName *string
	)
	err := row.Scan(&rs.ID, &rs.SurgeryID, &rs.SymptomID, &rs.AgeGroup, &rs.Status, &rs.LastReviewedAt,
		&byID, &byEmail, &byName, &rs.ReviewNote, &rs.CreatedAt, &rs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}
	if byID != nil {
		rs.LastReviewedBy = &Reviewer{ID: *byID}
		if byEmail != nil {
			rs.LastReviewedBy.Email = *byEmail
		}
		if byName != nil {
			rs.LastReviewedBy.Name = *byName
		}
	}
	return &rs, nil
}

func (r *repoPG) ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]ReviewStatus, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+statusCols+` FROM symptom_review_status WHERE surgery_id = $1`, surgeryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReviewStatus
	for rows.Next() {
		rs, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rs)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, surgeryID uuid.UUID, symptomID, ageGroup string) (*ReviewStatus, error) {
	return scanStatus(r.conn(ctx).QueryRow(ctx, `SELECT `+statusCols+`
		FROM symptom_review_status WHERE surgery_id = $1 AND symptom_id = $2 AND age_group = $3`,
		surgeryID, symptomID, ageGroup))
}

func (r *repoPG) Upsert(ctx context.Context, rs *ReviewStatus) error {
	var byID, byEmail, byName *string
	if rs.LastReviewedBy != nil {
		byID, byEmail, byName = &rs.LastReviewedBy.ID, &rs.LastReviewedBy.Email, &rs.LastReviewedBy.Name
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO symptom_review_status (surgery_id, symptom_id, age_group, status, last_reviewed_at,
			last_reviewed_by_id, last_reviewed_by_email, last_reviewed_by_name, review_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (surgery_id, symptom_id, age_group) DO UPDATE SET
			status = EXCLUDED.status, last_reviewed_at = EXCLUDED.last_reviewed_at,
			last_reviewed_by_id = EXCLUDED.last_reviewed_by_id,
			last_reviewed_by_email = EXCLUDED.last_reviewed_by_email,
			last_reviewed_by_name = EXCLUDED.last_reviewed_by_name,
			review_note = EXCLUDED.review_note, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		rs.SurgeryID, rs.SymptomID, rs.AgeGroup, rs.Status, rs.LastReviewedAt,
		byID, byEmail, byName, rs.ReviewNote,
	).Scan(&rs.ID, &rs.CreatedAt, &rs.UpdatedAt)
}

func (r *repoPG) ResetAll(ctx context.Context, surgeryID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE symptom_review_status SET status = 'PENDING', updated_at = NOW()
		WHERE surgery_id = $1`, surgeryID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) ApproveKeys(ctx context.Context, surgeryID uuid.UUID, refs []SymptomRef, reviewer Reviewer, at time.Time) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(refs))
	ages := make([]string, len(refs))
	for i, ref := range refs {
		ids[i], ages[i] = ref.SymptomID, ref.AgeGroup
	}
	// The WHERE on the update arm leaves rows that moved away from PENDING
	// since they were read. DISTINCT keeps ON CONFLICT from seeing one key
	// twice in a statement.
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO symptom_review_status (surgery_id, symptom_id, age_group, status, last_reviewed_at,
			last_reviewed_by_id, last_reviewed_by_email, last_reviewed_by_name)
		SELECT $1, k.symptom_id, k.age_group, 'APPROVED', $4, $5, $6, $7
		FROM (SELECT DISTINCT u.symptom_id, u.age_group
			FROM unnest($2::text[], $3::text[]) AS u(symptom_id, age_group)) AS k
		ON CONFLICT (surgery_id, symptom_id, age_group) DO UPDATE SET
			status = 'APPROVED', last_reviewed_at = EXCLUDED.last_reviewed_at,
			last_reviewed_by_id = EXCLUDED.last_reviewed_by_id,
			last_reviewed_by_email = EXCLUDED.last_reviewed_by_email,
			last_reviewed_by_name = EXCLUDED.last_reviewed_by_name,
			review_note = NULL, updated_at = NOW()
		WHERE symptom_review_status.status = 'PENDING'`,
		surgeryID, ids, ages, at, reviewer.ID, reviewer.Email, reviewer.Name)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
