package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
	"github.com/DeepChandMishra/Skincare/internal/platform/versioning"
	"github.com/DeepChandMishra/Skincare/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := auth.RequireRole(auth.RolePatient)
	doctor := auth.RequireRole(auth.RoleDoctor)
	anyone := auth.RequireActor()

	api.POST("/consultations", h.Create, patient)
	api.GET("/patients/:patient_id/consultations", h.ListForPatient, patient)

	api.GET("/doctors/me/consultations", h.ListForDoctor, doctor)
	api.POST("/consultations/:id/transitions", h.Transition, doctor)

	api.GET("/consultations/:id", h.Get, anyone)
	api.GET("/consultations/:id/history", h.History, anyone)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type transitionErrorBody struct {
	Code      TransitionCode `json:"code"`
	Message   string         `json:"message"`
	Current   Status         `json:"current"`
	Action    Action         `json:"action"`
	Permitted []Action       `json:"permitted"`
}

// errorResponse maps service errors onto HTTP errors. Store failures are
// logged here, where the request id is known, and reach the client as a
// generic 500.
func (h *Handler) errorResponse(c echo.Context, err error) error {
	var ve *ValidationError
	var te *TransitionError
	var pe *PersistenceError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{Code: string(ve.Code), Message: ve.Message})
	case errors.As(err, &te):
		status := http.StatusConflict
		if te.Code == CodeUnauthorized {
			status = http.StatusForbidden
		}
		return echo.NewHTTPError(status, transitionErrorBody{
			Code: te.Code, Message: te.Error(), Current: te.Current, Action: te.Action, Permitted: te.Permitted,
		})
	case errors.Is(err, ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, errorBody{Code: "ConcurrentModification", Message: err.Error()})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, errorBody{Code: "NotFound", Message: "consultation not found"})
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, errorBody{Code: "Forbidden", Message: err.Error()})
	}

	rid, _ := c.Get("request_id").(string)
	evt := h.logger.Error().Err(err).Str("request_id", rid)
	if errors.As(err, &pe) {
		evt = evt.Str("op", pe.Op)
	}
	evt.Msg("consultation request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, errorBody{Code: "InternalError", Message: "internal server error"})
}

func actorOf(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return actor, nil
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

type detailResponse struct {
	*Request
	PermittedActions []Action `json:"permitted_actions"`
}

func (h *Handler) writeRequest(c echo.Context, status int, r *Request) error {
	versioning.SetHeaders(c, r.VersionID, r.UpdatedAt)
	return c.JSON(status, detailResponse{Request: r, PermittedActions: PermittedActions(r.Status)})
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{Code: "InvalidBody", Message: err.Error()})
	}
	r, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return h.writeRequest(c, http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return h.writeRequest(c, http.StatusOK, r)
}

func (h *Handler) History(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	changes, err := h.svc.History(c.Request().Context(), id, actor)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewList(changes, "no status changes yet"))
}

type transitionBody struct {
	Action string `json:"action"`
	TimeProposal
}

func (h *Handler) Transition(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body transitionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{Code: "InvalidBody", Message: err.Error()})
	}
	action, ok := ParseAction(body.Action)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{Code: "UnknownAction", Message: "unknown action " + body.Action})
	}
	expected, err := versioning.ExpectedVersion(c)
	if err != nil {
		return err
	}

	var proposal *TimeProposal
	if action == ActionProposeNewTime {
		proposal = &body.TimeProposal
	}
	r, err := h.svc.ApplyTransition(c.Request().Context(), id, action, actor, proposal, expected)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return h.writeRequest(c, http.StatusOK, r)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	if patientID != actor.ID {
		return echo.NewHTTPError(http.StatusForbidden, errorBody{Code: "Forbidden", Message: "patients may only list their own consultations"})
	}
	views, err := h.svc.PatientOverview(c.Request().Context(), patientID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewList(views, "no consultations found"))
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	views, err := h.svc.ListByDoctor(c.Request().Context(), actor.ID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewList(views, "no consultation requests assigned"))
}
