package admin

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type MembershipRepository interface {
	Upsert(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, userID, surgeryID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error)
}
