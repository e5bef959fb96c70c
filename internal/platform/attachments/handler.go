package attachments

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
)

// MaxFilesPerUpload bounds the number of parts accepted in one request.
const MaxFilesPerUpload = 10

// ReadGrant decides whether an actor other than the uploader may read an
// attachment.
type ReadGrant interface {
	CanReadAttachment(ctx context.Context, ref string, actor auth.Actor) (bool, error)
}

type Handler struct {
	store  Store
	grant  ReadGrant
	logger zerolog.Logger
}

func NewHandler(store Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// SetReadGrant lets g open attachments to actors besides the uploader.
// Without one only the uploader can download.
func (h *Handler) SetReadGrant(g ReadGrant) {
	h.grant = g
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/attachments", h.Upload, auth.RequireRole(auth.RolePatient))
	api.GET("/attachments/:ref", h.Download, auth.RequireActor())
}

type uploadResponse struct {
	Refs  []string `json:"refs"`
	Files []*Meta  `json:"files"`
}

// Upload accepts one or more multipart parts named "files" and returns their
// references in the order they were sent.
func (h *Handler) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form is required")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}
	if len(files) > MaxFilesPerUpload {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", MaxFilesPerUpload))
	}

	var uploader string
	if actor, ok := auth.ActorFromContext(c.Request().Context()); ok {
		uploader = actor.ID.String()
	}

	resp := uploadResponse{Refs: make([]string, 0, len(files)), Files: make([]*Meta, 0, len(files))}
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
		}
		meta, err := h.store.Put(c.Request().Context(), Meta{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			UploadedBy:  uploader,
		}, src)
		src.Close()
		if err != nil {
			switch {
			case errors.Is(err, ErrFileTooLarge):
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
			case errors.Is(err, ErrInvalidContentType):
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
			case errors.Is(err, ErrEmptyFile):
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			default:
				h.logger.Error().Err(err).Str("file_name", fh.Filename).Msg("store attachment")
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to store attachment")
			}
		}
		resp.Refs = append(resp.Refs, meta.Ref)
		resp.Files = append(resp.Files, meta)
	}

	return c.JSON(http.StatusCreated, resp)
}

// Download streams an attachment to its uploader, or to an actor the read
// grant admits.
func (h *Handler) Download(c echo.Context) error {
	ctx := c.Request().Context()
	ref := c.Param("ref")
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	meta, err := h.store.Stat(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ref", ref).Msg("stat attachment")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read attachment")
	}

	allowed := meta.UploadedBy == actor.ID.String()
	if !allowed && h.grant != nil {
		allowed, err = h.grant.CanReadAttachment(ctx, ref, actor)
		if err != nil {
			h.logger.Error().Err(err).Str("ref", ref).Str("actor_id", actor.ID.String()).Msg("check attachment access")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to read attachment")
		}
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not permitted to read this attachment")
	}

	rc, meta, err := h.store.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ref", ref).Msg("read attachment")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read attachment")
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
