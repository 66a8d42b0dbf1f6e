package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/tests", auth.RequireRole(auth.ClinicalRoles...))
	read.GET("", h.List)
	read.GET("/:code", h.Get)

	admin := api.Group("/tests", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.Create)
	admin.PUT("/:code", h.Update)
	admin.DELETE("/:code", h.Deactivate)
}

// List returns active tests; admins may pass ?all=true for withdrawn ones.
func (h *Handler) List(c echo.Context) error {
	activeOnly := !(c.QueryParam("all") == "true" && auth.RoleFromContext(c.Request().Context()) == auth.RoleAdmin)
	defs, err := h.svc.List(c.Request().Context(), activeOnly)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, defs)
}

func (h *Handler) Get(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Create(c echo.Context) error {
	var d TestDefinition
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &d); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Update(c echo.Context) error {
	var d TestDefinition
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.Code = c.Param("code")
	if err := h.svc.Update(c.Request().Context(), &d); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Deactivate(c echo.Context) error {
	if err := h.svc.Deactivate(c.Request().Context(), c.Param("code")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
