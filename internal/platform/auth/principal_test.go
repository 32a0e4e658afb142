package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseGlobalRole(t *testing.T) {
	tests := []struct {
		in      string
		want    GlobalRole
		wantErr bool
	}{
		{"SUPERUSER", GlobalRoleSuperuser, false},
		{"superuser", GlobalRoleSuperuser, false},
		{"USER", GlobalRoleUser, false},
		{"", GlobalRoleUser, false},
		{"admin", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGlobalRole(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownRole) {
				t.Errorf("ParseGlobalRole(%q): expected ErrUnknownRole, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseGlobalRole(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestParseSurgeryRole(t *testing.T) {
	if r, err := ParseSurgeryRole("admin"); err != nil || r != SurgeryRoleAdmin {
		t.Errorf("expected ADMIN, got %q, %v", r, err)
	}
	if r, err := ParseSurgeryRole("STANDARD"); err != nil || r != SurgeryRoleStandard {
		t.Errorf("expected STANDARD, got %q, %v", r, err)
	}
	if _, err := ParseSurgeryRole(""); err == nil {
		t.Error("expected error for empty surgery role")
	}
}

func TestPrincipal_Permissions(t *testing.T) {
	adminOf := uuid.New()
	memberOf := uuid.New()
	other := uuid.New()

	p := &Principal{
		UserID:     "u1",
		GlobalRole: GlobalRoleUser,
		Surgeries: map[uuid.UUID]SurgeryRole{
			adminOf:  SurgeryRoleAdmin,
			memberOf: SurgeryRoleStandard,
		},
	}

	if !p.CanAdminister(adminOf) {
		t.Error("expected admin access to adminOf")
	}
	if p.CanAdminister(memberOf) {
		t.Error("standard member must not administer")
	}
	if !p.CanView(memberOf) {
		t.Error("expected view access to memberOf")
	}
	if p.CanView(other) {
		t.Error("expected no access to unrelated surgery")
	}

	su := &Principal{GlobalRole: GlobalRoleSuperuser}
	if !su.CanAdminister(other) || !su.CanView(other) {
		t.Error("superuser must access every surgery")
	}

	var nilP *Principal
	if nilP.CanView(other) || nilP.CanAdminister(other) || nilP.IsSuperuser() {
		t.Error("nil principal must have no access")
	}
}

func TestAuthorizeSurgery(t *testing.T) {
	sid := uuid.New()
	ctx := WithPrincipal(context.Background(), &Principal{
		GlobalRole: GlobalRoleUser,
		Surgeries:  map[uuid.UUID]SurgeryRole{sid: SurgeryRoleStandard},
	})

	if err := AuthorizeSurgery(ctx, sid, SurgeryRoleStandard); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := AuthorizeSurgery(ctx, sid, SurgeryRoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := AuthorizeSurgery(context.Background(), sid, SurgeryRoleStandard); !errors.Is(err, ErrNoPrincipal) {
		t.Errorf("expected ErrNoPrincipal, got %v", err)
	}
}

func TestClaims_Principal(t *testing.T) {
	sid := uuid.New()
	c := &Claims{
		Email:      "GP@Example.org",
		Name:       "Dr Who",
		GlobalRole: "USER",
		Surgeries:  map[string]string{sid.String(): "ADMIN"},
	}
	c.Subject = "user-1"

	p, err := c.Principal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "user-1" || p.Email != "gp@example.org" {
		t.Errorf("unexpected principal: %+v", p)
	}
	if p.Surgeries[sid] != SurgeryRoleAdmin {
		t.Errorf("expected ADMIN for %s, got %q", sid, p.Surgeries[sid])
	}

	c.Surgeries = map[string]string{"not-a-uuid": "ADMIN"}
	if _, err := c.Principal(); err == nil {
		t.Error("expected error for malformed surgery id")
	}

	c.Surgeries = nil
	c.GlobalRole = "root"
	if _, err := c.Principal(); err == nil {
		t.Error("expected error for unknown global role")
	}
}
