package availability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockWindowRepo, *echo.Echo) {
	repo := newMockWindowRepo()
	return NewHandler(NewService(repo)), repo, echo.New()
}

func TestHandler_ListWindows(t *testing.T) {
	h, repo, e := newTestHandler()
	doctor := uuid.New()
	repo.add(&Window{DoctorID: doctor, Date: day(1), StartTime: NewClock(9, 0), EndTime: NewClock(10, 0)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())

	if err := h.ListWindows(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Kind string            `json:"kind"`
		Data []json.RawMessage `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Kind != "ok" || len(body.Data) != 1 {
		t.Errorf("expected one window in an ok result, got %s", rec.Body.String())
	}
}

func TestHandler_ListWindows_Empty(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(uuid.New().String())

	if err := h.ListWindows(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["kind"] != "empty" {
		t.Errorf("expected empty kind, got %v", body["kind"])
	}
}

func TestHandler_ListWindows_BadID(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("doctor_id")
	c.SetParamValues("not-a-uuid")

	err := h.ListWindows(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetWindow(t *testing.T) {
	h, repo, e := newTestHandler()
	w := repo.add(&Window{DoctorID: uuid.New(), Date: day(1), StartTime: NewClock(9, 0), EndTime: NewClock(10, 0)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(w.ID.String())

	if err := h.GetWindow(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetWindow_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetWindow(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
