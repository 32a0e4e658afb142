package symptom

import (
	"context"
	"errors"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Base library --

type baseRepoPG struct{ pool *pgxpool.Pool }

func NewBaseRepoPG(pool *pgxpool.Pool) BaseRepository { return &baseRepoPG{pool: pool} }

const baseCols = `id, slug, name, age_group, brief_instruction, highlighted_text, instructions, created_at, updated_at`

func scanBase(row pgx.Row) (*BaseSymptom, error) {
	var b BaseSymptom
	err := row.Scan(&b.ID, &b.Slug, &b.Name, &b.AgeGroup, &b.BriefInstruction, &b.HighlightedText,
		&b.Instructions, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSymptomNotFound
	}
	return &b, err
}

func (r *baseRepoPG) List(ctx context.Context) ([]BaseSymptom, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+baseCols+` FROM base_symptom ORDER BY name, age_group`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BaseSymptom
	for rows.Next() {
		b, err := scanBase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	return items, rows.Err()
}

func (r *baseRepoPG) GetByID(ctx context.Context, id string) (*BaseSymptom, error) {
	return scanBase(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+baseCols+` FROM base_symptom WHERE id = $1 ORDER BY age_group LIMIT 1`, id))
}

func (r *baseRepoPG) Upsert(ctx context.Context, b *BaseSymptom) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO base_symptom (id, slug, name, age_group, brief_instruction, highlighted_text, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id, age_group) DO UPDATE SET
			slug = EXCLUDED.slug, name = EXCLUDED.name,
			brief_instruction = EXCLUDED.brief_instruction, highlighted_text = EXCLUDED.highlighted_text,
			instructions = EXCLUDED.instructions, updated_at = NOW()
		RETURNING created_at, updated_at`,
		b.ID, b.Slug, b.Name, b.AgeGroup, b.BriefInstruction, b.HighlightedText, b.Instructions,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// -- Overrides --

type overrideRepoPG struct{ pool *pgxpool.Pool }

func NewOverrideRepoPG(pool *pgxpool.Pool) OverrideRepository { return &overrideRepoPG{pool: pool} }

func (r *overrideRepoPG) ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]SymptomOverride, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT surgery_id, base_symptom_id, name, brief_instruction, highlighted_text, instructions, updated_at
		FROM surgery_symptom_override WHERE surgery_id = $1`, surgeryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SymptomOverride
	for rows.Next() {
		var o SymptomOverride
		if err := rows.Scan(&o.SurgeryID, &o.BaseSymptomID, &o.Name, &o.BriefInstruction,
			&o.HighlightedText, &o.Instructions, &o.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *overrideRepoPG) Upsert(ctx context.Context, o *SymptomOverride) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO surgery_symptom_override (surgery_id, base_symptom_id, name, brief_instruction, highlighted_text, instructions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (surgery_id, base_symptom_id) DO UPDATE SET
			name = EXCLUDED.name, brief_instruction = EXCLUDED.brief_instruction,
			highlighted_text = EXCLUDED.highlighted_text, instructions = EXCLUDED.instructions,
			updated_at = NOW()
		RETURNING updated_at`,
		o.SurgeryID, o.BaseSymptomID, o.Name, o.BriefInstruction, o.HighlightedText, o.Instructions,
	).Scan(&o.UpdatedAt)
}

func (r *overrideRepoPG) Delete(ctx context.Context, surgeryID uuid.UUID, baseSymptomID string) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`DELETE FROM surgery_symptom_override WHERE surgery_id = $1 AND base_symptom_id = $2`, surgeryID, baseSymptomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSymptomNotFound
	}
	return nil
}

// -- Custom symptoms --

type customRepoPG struct{ pool *pgxpool.Pool }

func NewCustomRepoPG(pool *pgxpool.Pool) CustomRepository { return &customRepoPG{pool: pool} }

const customCols = `id, surgery_id, slug, name, age_group, brief_instruction, highlighted_text, instructions, created_at, updated_at`

func scanCustom(row pgx.Row) (*CustomSymptom, error) {
	var c CustomSymptom
	err := row.Scan(&c.ID, &c.SurgeryID, &c.Slug, &c.Name, &c.AgeGroup, &c.BriefInstruction,
		&c.HighlightedText, &c.Instructions, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSymptomNotFound
	}
	return &c, err
}

func (r *customRepoPG) ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]CustomSymptom, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+customCols+` FROM custom_symptom WHERE surgery_id = $1 ORDER BY name, age_group`, surgeryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CustomSymptom
	for rows.Next() {
		c, err := scanCustom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r *customRepoPG) GetByID(ctx context.Context, surgeryID uuid.UUID, id string) (*CustomSymptom, error) {
	return scanCustom(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+customCols+` FROM custom_symptom WHERE surgery_id = $1 AND id = $2`, surgeryID, id))
}

func (r *customRepoPG) Create(ctx context.Context, c *CustomSymptom) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO custom_symptom (id, surgery_id, slug, name, age_group, brief_instruction, highlighted_text, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		c.ID, c.SurgeryID, c.Slug, c.Name, c.AgeGroup, c.BriefInstruction, c.HighlightedText, c.Instructions,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrIDTaken
	}
	return err
}

func (r *customRepoPG) Delete(ctx context.Context, surgeryID uuid.UUID, id string) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`DELETE FROM custom_symptom WHERE surgery_id = $1 AND id = $2`, surgeryID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSymptomNotFound
	}
	return nil
}

// -- Visibility --

type visibilityRepoPG struct{ pool *pgxpool.Pool }

func NewVisibilityRepoPG(pool *pgxpool.Pool) VisibilityRepository { return &visibilityRepoPG{pool: pool} }

func (r *visibilityRepoPG) ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]Visibility, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT surgery_id, base_symptom_id, custom_symptom_id, is_enabled, updated_at
		FROM surgery_symptom_status WHERE surgery_id = $1`, surgeryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Visibility
	for rows.Next() {
		var v Visibility
		if err := rows.Scan(&v.SurgeryID, &v.BaseSymptomID, &v.CustomSymptomID, &v.IsEnabled, &v.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// Set upserts against the partial unique index that matches whichever id is
// present.
func (r *visibilityRepoPG) Set(ctx context.Context, v *Visibility) error {
	target := `(surgery_id, base_symptom_id) WHERE base_symptom_id IS NOT NULL`
	if v.CustomSymptomID != nil {
		target = `(surgery_id, custom_symptom_id) WHERE custom_symptom_id IS NOT NULL`
	}
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO surgery_symptom_status (surgery_id, base_symptom_id, custom_symptom_id, is_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT `+target+` DO UPDATE SET is_enabled = EXCLUDED.is_enabled, updated_at = NOW()
		RETURNING updated_at`,
		v.SurgeryID, v.BaseSymptomID, v.CustomSymptomID, v.IsEnabled,
	).Scan(&v.UpdatedAt)
}
