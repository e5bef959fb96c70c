package availability

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
	"github.com/DeepChandMishra/Skincare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:doctor_id/availability", h.ListWindows, auth.RequireActor())
	api.GET("/availability/:id", h.GetWindow, auth.RequireActor())
}

func (h *Handler) ListWindows(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	windows, err := h.svc.ListWindows(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewList(windows, "no availability published for this doctor"))
}

func (h *Handler) GetWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	w, err := h.svc.GetWindow(c.Request().Context(), id)
	if errors.Is(err, ErrWindowNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "availability window not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}
