package admin

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/signpost/signpost/internal/platform/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrInvalidEmail       = errors.New("a valid email is required")
)

// User maps to the app_user table.
type User struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Email            string          `db:"email" json:"email"`
	Name             *string         `db:"name" json:"name,omitempty"`
	GlobalRole       auth.GlobalRole `db:"global_role" json:"globalRole"`
	DefaultSurgeryID *uuid.UUID      `db:"default_surgery_id" json:"defaultSurgeryId,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Membership maps to the user_surgery table: one role per user and surgery.
type Membership struct {
	UserID    uuid.UUID        `db:"user_id" json:"userId"`
	SurgeryID uuid.UUID        `db:"surgery_id" json:"surgeryId"`
	Role      auth.SurgeryRole `db:"role" json:"role"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}
