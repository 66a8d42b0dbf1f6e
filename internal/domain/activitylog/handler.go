package activitylog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/activity-logs", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.List)
	g.GET("/entity/:type/:id", h.ListByEntity)
	g.GET("/user/:id", h.ListByUser)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	if c.QueryParam("limit") == "" {
		pg.Limit = DefaultLimit
	}
	entries, total, err := h.svc.ListAll(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByEntity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.svc.ListByEntity(c.Request().Context(), c.Param("type"), c.Param("id"), limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListByUser(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.svc.ListByUser(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, entries)
}
