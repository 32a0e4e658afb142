package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signpost/signpost/internal/platform/auth"
)

type Service struct {
	users       UserRepository
	memberships MembershipRepository
	logger      zerolog.Logger
}

func NewService(users UserRepository, memberships MembershipRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:       users,
		memberships: memberships,
		logger:      logger.With().Str("component", "admin").Logger(),
	}
}

func normaliseUser(u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	role, err := auth.ParseGlobalRole(string(u.GlobalRole))
	if err != nil {
		return err
	}
	u.GlobalRole = role
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			u.Name = nil
		} else {
			u.Name = &name
		}
	}
	return nil
}

// -- User --

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if err := normaliseUser(u); err != nil {
		return err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("global_role", string(u.GlobalRole)).Msg("user created")
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if err := normaliseUser(u); err != nil {
		return err
	}
	return s.users.Update(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("user deleted")
	return nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// -- Membership --

// SetMembership grants or changes the user's role in a surgery.
func (s *Service) SetMembership(ctx context.Context, userID, surgeryID uuid.UUID, role string) (*Membership, error) {
	r, err := auth.ParseSurgeryRole(role)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	m := &Membership{UserID: userID, SurgeryID: surgeryID, Role: r}
	if err := s.memberships.Upsert(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("user_id", userID.String()).
		Str("surgery_id", surgeryID.String()).
		Str("role", string(r)).
		Msg("membership set")
	return m, nil
}

func (s *Service) RemoveMembership(ctx context.Context, userID, surgeryID uuid.UUID) error {
	return s.memberships.Delete(ctx, userID, surgeryID)
}

func (s *Service) ListMemberships(ctx context.Context, userID uuid.UUID) ([]*Membership, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.memberships.ListByUser(ctx, userID)
}

// PrincipalFor builds the authorization identity for a stored user: global
// role plus one entry per surgery membership.
func (s *Service) PrincipalFor(ctx context.Context, userID uuid.UUID) (*auth.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ms, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &auth.Principal{
		UserID:     u.ID.String(),
		Email:      u.Email,
		GlobalRole: u.GlobalRole,
		Surgeries:  make(map[uuid.UUID]auth.SurgeryRole, len(ms)),
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	for _, m := range ms {
		p.Surgeries[m.SurgeryID] = m.Role
	}
	return p, nil
}
