package symptom

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

func newTestHandler() (*Handler, *testDeps, *echo.Echo) {
	svc, d := newTestService()
	return NewHandler(svc), d, echo.New()
}

func asMember(req *http.Request, surgeryID uuid.UUID, role auth.SurgeryRole) *http.Request {
	p := &auth.Principal{
		UserID:     "u-1",
		GlobalRole: auth.GlobalRoleUser,
		Surgeries:  map[uuid.UUID]auth.SurgeryRole{surgeryID: role},
	}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestHandler_ListEffective(t *testing.T) {
	h, _, e := newTestHandler()
	surgeryID := uuid.New()
	req := asMember(httptest.NewRequest(http.MethodGet, "/api/effectiveSymptoms?surgeryId="+surgeryID.String(), nil), surgeryID, auth.SurgeryRoleStandard)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListEffective(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Symptoms []EffectiveSymptom `json:"symptoms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Symptoms) != 3 {
		t.Errorf("expected 3 symptoms, got %d", len(body.Symptoms))
	}
}

func TestHandler_ListEffective_IncludeDisabled(t *testing.T) {
	h, d, e := newTestHandler()
	surgeryID := uuid.New()
	cough := "cough"
	d.visibility.Set(context.Background(), &Visibility{SurgeryID: surgeryID, BaseSymptomID: &cough})

	for _, tt := range []struct {
		query string
		want  int
	}{
		{"", 2},
		{"&includeDisabled=true", 3},
	} {
		req := asMember(httptest.NewRequest(http.MethodGet, "/?surgeryId="+surgeryID.String()+tt.query, nil), surgeryID, auth.SurgeryRoleStandard)
		rec := httptest.NewRecorder()
		if err := h.ListEffective(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var body struct {
			Symptoms []EffectiveSymptom `json:"symptoms"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Symptoms) != tt.want {
			t.Errorf("query %q: expected %d symptoms, got %d", tt.query, tt.want, len(body.Symptoms))
		}
	}
}

func TestHandler_ListEffective_MissingSurgery(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/effectiveSymptoms", nil), httptest.NewRecorder())
	if code := statusOf(t, h.ListEffective(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListEffective_NonMember(t *testing.T) {
	h, _, e := newTestHandler()
	req := asMember(httptest.NewRequest(http.MethodGet, "/?surgeryId="+uuid.NewString(), nil), uuid.New(), auth.SurgeryRoleAdmin)
	c := e.NewContext(req, httptest.NewRecorder())
	if code := statusOf(t, h.ListEffective(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_SetVisibility(t *testing.T) {
	h, d, e := newTestHandler()
	surgeryID := uuid.New()
	body := `{"action":"DISABLE","surgeryId":"` + surgeryID.String() + `","baseSymptomId":"cough"}`
	req := asMember(httptest.NewRequest(http.MethodPatch, "/api/surgerySymptoms", strings.NewReader(body)), surgeryID, auth.SurgeryRoleAdmin)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.SetVisibility(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(d.visibility.items) != 1 {
		t.Errorf("expected one visibility row, got %d", len(d.visibility.items))
	}
}

func TestHandler_SetVisibility_StandardForbidden(t *testing.T) {
	h, _, e := newTestHandler()
	surgeryID := uuid.New()
	body := `{"action":"DISABLE","surgeryId":"` + surgeryID.String() + `","baseSymptomId":"cough"}`
	req := asMember(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)), surgeryID, auth.SurgeryRoleStandard)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if code := statusOf(t, h.SetVisibility(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_SetVisibility_Errors(t *testing.T) {
	h, _, e := newTestHandler()
	surgeryID := uuid.New()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown symptom", `{"action":"DISABLE","surgeryId":"` + surgeryID.String() + `","baseSymptomId":"nope"}`, http.StatusNotFound},
		{"bad action", `{"action":"HIDE","surgeryId":"` + surgeryID.String() + `","baseSymptomId":"cough"}`, http.StatusBadRequest},
		{"no target", `{"action":"DISABLE","surgeryId":"` + surgeryID.String() + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asMember(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tt.body)), surgeryID, auth.SurgeryRoleAdmin)
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if code := statusOf(t, h.SetVisibility(e.NewContext(req, httptest.NewRecorder()))); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_CreateAndDeleteCustom(t *testing.T) {
	h, d, e := newTestHandler()
	surgeryID := uuid.New()
	body := `{"surgeryId":"` + surgeryID.String() + `","name":"Bee sting","ageGroup":"Adult"}`
	req := asMember(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), surgeryID, auth.SurgeryRoleAdmin)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateCustom(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var created CustomSymptom
	json.Unmarshal(rec.Body.Bytes(), &created)
	if _, ok := d.customs.items[created.ID]; !ok {
		t.Fatalf("custom symptom %q not stored", created.ID)
	}

	req = asMember(httptest.NewRequest(http.MethodDelete, "/?surgeryId="+surgeryID.String()+"&id="+created.ID, nil), surgeryID, auth.SurgeryRoleAdmin)
	rec = httptest.NewRecorder()
	if err := h.DeleteCustom(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_SaveOverride(t *testing.T) {
	h, d, e := newTestHandler()
	surgeryID := uuid.New()
	body := `{"surgeryId":"` + surgeryID.String() + `","baseSymptomId":"fever","briefInstruction":"Call us"}`
	req := asMember(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), surgeryID, auth.SurgeryRoleAdmin)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.SaveOverride(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.overrides.items) != 1 {
		t.Errorf("expected one override, got %d", len(d.overrides.items))
	}
}

func TestHandler_CreateCustom_IDTaken(t *testing.T) {
	h, d, e := newTestHandler()
	surgeryID := uuid.New()
	body := `{"id":"cough","surgeryId":"` + surgeryID.String() + `","name":"Cough (ours)"}`
	req := asMember(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), surgeryID, auth.SurgeryRoleAdmin)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if code := statusOf(t, h.CreateCustom(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
	if len(d.customs.items) != 0 {
		t.Error("custom symptom must not be stored")
	}
}

func TestMutationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrSymptomNotFound, http.StatusNotFound},
		{"id taken", ErrIDTaken, http.StatusConflict},
		{"invalid input", invalidInput("name is required"), http.StatusBadRequest},
		{"invalid action", ErrInvalidAction, http.StatusBadRequest},
		{"ambiguous target", ErrAmbiguousTarget, http.StatusBadRequest},
		{"storage failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := statusOf(t, mutationError(tt.err)); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_SetVisibility_StorageFailure(t *testing.T) {
	h, d, e := newTestHandler()
	d.visibility.err = errors.New("connection reset")
	surgeryID := uuid.New()
	body := `{"action":"DISABLE","surgeryId":"` + surgeryID.String() + `","baseSymptomId":"cough"}`
	req := asMember(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)), surgeryID, auth.SurgeryRoleAdmin)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if code := statusOf(t, h.SetVisibility(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
}
