package symptom

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSymptomNotFound = errors.New("symptom not found")
	ErrInvalidAction   = errors.New("action must be ENABLE_EXISTING or DISABLE")
	ErrAmbiguousTarget = errors.New("exactly one of baseSymptomId or customSymptomId is required")
	ErrInvalidInput    = errors.New("invalid symptom input")
	// ErrIDTaken rejects a custom symptom id already used by the base
	// library or by another custom symptom of the same surgery.
	ErrIDTaken = errors.New("symptom id already in use")
)

type Source string

const (
	SourceBase     Source = "base"
	SourceOverride Source = "override"
	SourceCustom   Source = "custom"
)

// EffectiveSymptom is the symptom a surgery actually shows after merging the
// shared library with its own overrides and custom entries. It is never
// stored.
type EffectiveSymptom struct {
	ID               string  `json:"id"`
	Slug             string  `json:"slug"`
	Name             string  `json:"name"`
	AgeGroup         string  `json:"ageGroup,omitempty"`
	BriefInstruction *string `json:"briefInstruction,omitempty"`
	HighlightedText  *string `json:"highlightedText,omitempty"`
	Instructions     *string `json:"instructions,omitempty"`
	Source           Source  `json:"source"`
	BaseSymptomID    *string `json:"baseSymptomId,omitempty"`
	IsEnabled        bool    `json:"isEnabled"`
}

// Key identifies a symptom for clinical review. The same symptom id appears
// once per age group.
func Key(id, ageGroup string) string {
	return id + "-" + ageGroup
}

func (s EffectiveSymptom) Key() string {
	return Key(s.ID, s.AgeGroup)
}

// BaseSymptom maps to the shared base_symptom table, keyed by (id, age group).
type BaseSymptom struct {
	ID               string    `db:"id" json:"id"`
	Slug             string    `db:"slug" json:"slug"`
	Name             string    `db:"name" json:"name"`
	AgeGroup         string    `db:"age_group" json:"ageGroup,omitempty"`
	BriefInstruction *string   `db:"brief_instruction" json:"briefInstruction,omitempty"`
	HighlightedText  *string   `db:"highlighted_text" json:"highlightedText,omitempty"`
	Instructions     *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// SymptomOverride replaces individual fields of a base symptom for one
// surgery. Nil fields fall through to the base value.
type SymptomOverride struct {
	SurgeryID        uuid.UUID `db:"surgery_id" json:"surgeryId"`
	BaseSymptomID    string    `db:"base_symptom_id" json:"baseSymptomId"`
	Name             *string   `db:"name" json:"name,omitempty"`
	BriefInstruction *string   `db:"brief_instruction" json:"briefInstruction,omitempty"`
	HighlightedText  *string   `db:"highlighted_text" json:"highlightedText,omitempty"`
	Instructions     *string   `db:"instructions" json:"instructions,omitempty"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// CustomSymptom maps to custom_symptom and exists only for its surgery.
type CustomSymptom struct {
	ID               string    `db:"id" json:"id"`
	SurgeryID        uuid.UUID `db:"surgery_id" json:"surgeryId"`
	Slug             string    `db:"slug" json:"slug"`
	Name             string    `db:"name" json:"name"`
	AgeGroup         string    `db:"age_group" json:"ageGroup,omitempty"`
	BriefInstruction *string   `db:"brief_instruction" json:"briefInstruction,omitempty"`
	HighlightedText  *string   `db:"highlighted_text" json:"highlightedText,omitempty"`
	Instructions     *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Visibility maps to surgery_symptom_status. Exactly one of BaseSymptomID and
// CustomSymptomID is set. Symptoms without a row are enabled.
type Visibility struct {
	SurgeryID       uuid.UUID `db:"surgery_id" json:"surgeryId"`
	BaseSymptomID   *string   `db:"base_symptom_id" json:"baseSymptomId,omitempty"`
	CustomSymptomID *string   `db:"custom_symptom_id" json:"customSymptomId,omitempty"`
	IsEnabled       bool      `db:"is_enabled" json:"isEnabled"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

type Action string

const (
	ActionEnableExisting Action = "ENABLE_EXISTING"
	ActionDisable        Action = "DISABLE"
)

func (a Action) Valid() bool {
	return a == ActionEnableExisting || a == ActionDisable
}

// VisibilityChange is the body of PATCH /surgerySymptoms.
type VisibilityChange struct {
	Action          Action    `json:"action"`
	SurgeryID       uuid.UUID `json:"surgeryId"`
	BaseSymptomID   *string   `json:"baseSymptomId,omitempty"`
	CustomSymptomID *string   `json:"customSymptomId,omitempty"`
}

func (v VisibilityChange) Validate() error {
	if !v.Action.Valid() {
		return ErrInvalidAction
	}
	hasBase := v.BaseSymptomID != nil && *v.BaseSymptomID != ""
	hasCustom := v.CustomSymptomID != nil && *v.CustomSymptomID != ""
	if hasBase == hasCustom {
		return ErrAmbiguousTarget
	}
	return nil
}

// TargetFor returns the visibility change that targets s. Base and override
// symptoms are addressed by their base id.
func TargetFor(s EffectiveSymptom, surgeryID uuid.UUID, action Action) VisibilityChange {
	change := VisibilityChange{Action: action, SurgeryID: surgeryID}
	id := s.ID
	if s.Source == SourceCustom {
		change.CustomSymptomID = &id
	} else {
		if s.BaseSymptomID != nil {
			id = *s.BaseSymptomID
		}
		change.BaseSymptomID = &id
	}
	return change
}

// Resolve merges the shared library with one surgery's overrides, custom
// symptoms and visibility rows. The result is ordered by name then age group;
// ties keep input order (base before custom).
func Resolve(base []BaseSymptom, overrides []SymptomOverride, customs []CustomSymptom, visibility []Visibility, includeDisabled bool) []EffectiveSymptom {
	byBase := make(map[string]SymptomOverride, len(overrides))
	for _, o := range overrides {
		byBase[o.BaseSymptomID] = o
	}
	disabledBase := make(map[string]bool)
	disabledCustom := make(map[string]bool)
	for _, v := range visibility {
		if v.IsEnabled {
			continue
		}
		if v.BaseSymptomID != nil {
			disabledBase[*v.BaseSymptomID] = true
		}
		if v.CustomSymptomID != nil {
			disabledCustom[*v.CustomSymptomID] = true
		}
	}

	out := make([]EffectiveSymptom, 0, len(base)+len(customs))
	for _, b := range base {
		baseID := b.ID
		s := EffectiveSymptom{
			ID:               b.ID,
			Slug:             b.Slug,
			Name:             b.Name,
			AgeGroup:         b.AgeGroup,
			BriefInstruction: b.BriefInstruction,
			HighlightedText:  b.HighlightedText,
			Instructions:     b.Instructions,
			Source:           SourceBase,
			IsEnabled:        !disabledBase[b.ID],
		}
		if o, ok := byBase[b.ID]; ok {
			s.Source = SourceOverride
			s.BaseSymptomID = &baseID
			if o.Name != nil {
				s.Name = *o.Name
			}
			if o.BriefInstruction != nil {
				s.BriefInstruction = o.BriefInstruction
			}
			if o.HighlightedText != nil {
				s.HighlightedText = o.HighlightedText
			}
			if o.Instructions != nil {
				s.Instructions = o.Instructions
			}
		}
		if s.IsEnabled || includeDisabled {
			out = append(out, s)
		}
	}
	for _, c := range customs {
		s := EffectiveSymptom{
			ID:               c.ID,
			Slug:             c.Slug,
			Name:             c.Name,
			AgeGroup:         c.AgeGroup,
			BriefInstruction: c.BriefInstruction,
			HighlightedText:  c.HighlightedText,
			Instructions:     c.Instructions,
			Source:           SourceCustom,
			IsEnabled:        !disabledCustom[c.ID],
		}
		if s.IsEnabled || includeDisabled {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].AgeGroup < out[j].AgeGroup
	})
	return out
}
