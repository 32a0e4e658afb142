package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/signpost/signpost/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreateUser(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/admin/users", `{"email":"Nurse@Example.com","globalRole":"USER"}`), rec)

	if err := h.CreateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var u User
	json.Unmarshal(rec.Body.Bytes(), &u)
	if u.Email != "nurse@example.com" {
		t.Errorf("expected lower-cased email, got %q", u.Email)
	}
}

func TestHandler_CreateUser_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	tests := []string{`{}`, `{"email":"a@b.c","globalRole":"ROOT"}`}
	for _, body := range tests {
		c := e.NewContext(jsonRequest(http.MethodPost, "/api/admin/users", body), httptest.NewRecorder())
		err := h.CreateUser(c)
		if err == nil {
			t.Fatalf("body %s: expected error", body)
		}
		if code := httpStatus(t, err); code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, code)
		}
	}
}

func TestHandler_CreateUser_Conflict(t *testing.T) {
	h, e := newTestHandler()
	h.svc.CreateUser(context.Background(), &User{Email: "a@b.c"})

	c := e.NewContext(jsonRequest(http.MethodPost, "/api/admin/users", `{"email":"a@b.c"}`), httptest.NewRecorder())
	if code := httpStatus(t, h.CreateUser(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_GetUser_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if code := httpStatus(t, h.GetUser(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetUser_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if code := httpStatus(t, h.GetUser(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_UpdateUser(t *testing.T) {
	h, e := newTestHandler()
	u := &User{Email: "a@b.c"}
	h.svc.CreateUser(context.Background(), u)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"name":"Alex"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())

	if err := h.UpdateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := h.svc.GetUser(context.Background(), u.ID)
	if got.Name == nil || *got.Name != "Alex" || got.Email != "a@b.c" {
		t.Errorf("unexpected user after update: %+v", got)
	}
}

func TestHandler_ListUsers(t *testing.T) {
	h, e := newTestHandler()
	h.svc.CreateUser(context.Background(), &User{Email: "a@b.c"})
	h.svc.CreateUser(context.Background(), &User{Email: "d@e.f"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/admin/users?limit=1", nil), rec)
	if err := h.ListUsers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data    []User `json:"data"`
		Total   int    `json:"total"`
		HasMore bool   `json:"hasMore"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 || len(body.Data) != 1 || !body.HasMore {
		t.Errorf("unexpected page: %s", rec.Body.String())
	}
}

func TestHandler_DeleteUser(t *testing.T) {
	h, e := newTestHandler()
	u := &User{Email: "a@b.c"}
	h.svc.CreateUser(context.Background(), u)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.DeleteUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_Memberships(t *testing.T) {
	h, e := newTestHandler()
	u := &User{Email: "a@b.c"}
	h.svc.CreateUser(context.Background(), u)
	surgeryID := uuid.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"role":"ADMIN"}`), rec)
	c.SetParamNames("id", "surgeryId")
	c.SetParamValues(u.ID.String(), surgeryID.String())
	if err := h.SetMembership(c); err != nil {
		t.Fatalf("SetMembership: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.ListMemberships(c); err != nil {
		t.Fatalf("ListMemberships: %v", err)
	}
	var body struct {
		Memberships []Membership `json:"memberships"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Memberships) != 1 || body.Memberships[0].Role != auth.SurgeryRoleAdmin {
		t.Errorf("unexpected memberships: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id", "surgeryId")
	c.SetParamValues(u.ID.String(), surgeryID.String())
	if err := h.RemoveMembership(c); err != nil {
		t.Fatalf("RemoveMembership: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_SetMembership_InvalidRole(t *testing.T) {
	h, e := newTestHandler()
	u := &User{Email: "a@b.c"}
	h.svc.CreateUser(context.Background(), u)

	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"role":"OWNER"}`), httptest.NewRecorder())
	c.SetParamNames("id", "surgeryId")
	c.SetParamValues(u.ID.String(), uuid.New().String())
	if code := httpStatus(t, h.SetMembership(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Method+":"+r.Path] = true
	}
	expected := []string{
		"POST:/api/admin/users",
		"GET:/api/admin/users",
		"GET:/api/admin/users/:id",
		"PUT:/api/admin/users/:id",
		"DELETE:/api/admin/users/:id",
		"GET:/api/admin/users/:id/surgeries",
		"PUT:/api/admin/users/:id/surgeries/:surgeryId",
		"DELETE:/api/admin/users/:id/surgeries/:surgeryId",
	}
	for _, path := range expected {
		if !routePaths[path] {
			t.Errorf("missing expected route: %s", path)
		}
	}
}
