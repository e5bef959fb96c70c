package directory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestHandler_ListDoctors(t *testing.T) {
	repo := newMockDirectoryRepo()
	repo.addDoctor("Ana", "Dermatology")
	repo.addDoctor("Ben", "Cosmetology")
	h := NewHandler(NewService(repo))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data    []Doctor `json:"data"`
		Total   int      `json:"total"`
		HasMore bool     `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 || len(body.Data) != 1 || !body.HasMore {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
	if body.Data[0].Specialization != "Dermatology" {
		t.Errorf("expected specialization in response, got %+v", body.Data[0])
	}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h := NewHandler(NewService(newMockDirectoryRepo()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("doctor_id")
	c.SetParamValues(uuid.New().String())

	err := h.GetDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
