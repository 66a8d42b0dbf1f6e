package dashboard

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
	g := api.Group("/dashboard")
	g.GET("", h.Mine, auth.RequireRole(auth.ClinicalRoles...))
	g.GET("/admin", h.Admin, auth.RequireRole(auth.RoleAdmin))
	g.GET("/staff", h.Staff, auth.RequireRole(auth.LabRoles...))
	g.GET("/doctor", h.Doctor, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) Mine(c echo.Context) error {
	st, err := h.svc.ForRole(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Admin(c echo.Context) error {
	st, err := h.svc.Admin(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Staff(c echo.Context) error {
	st, err := h.svc.Staff(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Doctor(c echo.Context) error {
	st, err := h.svc.Doctor(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}
