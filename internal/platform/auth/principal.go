package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GlobalRole is the account-wide role of a user.
type GlobalRole string

const (
	GlobalRoleSuperuser GlobalRole = "SUPERUSER"
	GlobalRoleUser      GlobalRole = "USER"
)

// SurgeryRole is a user's role within one surgery.
type SurgeryRole string

const (
	SurgeryRoleAdmin    SurgeryRole = "ADMIN"
	SurgeryRoleStandard SurgeryRole = "STANDARD"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrForbidden   = errors.New("forbidden")
	ErrNoPrincipal = errors.New("no authenticated principal")
)

func ParseGlobalRole(s string) (GlobalRole, error) {
	switch GlobalRole(strings.ToUpper(strings.TrimSpace(s))) {
	case GlobalRoleSuperuser:
		return GlobalRoleSuperuser, nil
	case GlobalRoleUser, "":
		return GlobalRoleUser, nil
	}
	return "", fmt.Errorf("%w: global role %q", ErrUnknownRole, s)
}

func ParseSurgeryRole(s string) (SurgeryRole, error) {
	switch SurgeryRole(strings.ToUpper(strings.TrimSpace(s))) {
	case SurgeryRoleAdmin:
		return SurgeryRoleAdmin, nil
	case SurgeryRoleStandard:
		return SurgeryRoleStandard, nil
	}
	return "", fmt.Errorf("%w: surgery role %q", ErrUnknownRole, s)
}

// Principal is the typed identity of the caller, built once from token claims.
type Principal struct {
	UserID     string
	Email      string
	Name       string
	GlobalRole GlobalRole
	Surgeries  map[uuid.UUID]SurgeryRole
}

func (p *Principal) IsSuperuser() bool {
	return p != nil && p.GlobalRole == GlobalRoleSuperuser
}

// CanView reports whether the principal belongs to the surgery in any role.
func (p *Principal) CanView(surgeryID uuid.UUID) bool {
	if p == nil {
		return false
	}
	if p.IsSuperuser() {
		return true
	}
	_, ok := p.Surgeries[surgeryID]
	return ok
}

// CanAdminister reports whether the principal may manage the surgery's content
// and clinical review.
func (p *Principal) CanAdminister(surgeryID uuid.UUID) bool {
	if p == nil {
		return false
	}
	return p.IsSuperuser() || p.Surgeries[surgeryID] == SurgeryRoleAdmin
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// AuthorizeSurgery returns nil when the caller in ctx holds at least the given
// role for surgeryID. Superusers always pass.
func AuthorizeSurgery(ctx context.Context, surgeryID uuid.UUID, role SurgeryRole) error {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ErrNoPrincipal
	}
	allowed := p.CanView(surgeryID)
	if role == SurgeryRoleAdmin {
		allowed = p.CanAdminister(surgeryID)
	}
	if !allowed {
		return fmt.Errorf("%w: %s role required for surgery %s", ErrForbidden, role, surgeryID)
	}
	return nil
}
