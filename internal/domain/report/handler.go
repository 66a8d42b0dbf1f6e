package report

import (
	"net/http"

	"github.com/google/uuid"
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
	g := api.Group("/reports", auth.RequireRole(auth.ClinicalRoles...))
	g.POST("", h.Generate)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/download", h.Download)
	g.GET("/patient/:id", h.ListByPatient)

	api.DELETE("/reports/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))

	portal := api.Group("/portal/reports", auth.RequireRole(auth.RolePatient))
	portal.GET("", h.MyReports)
	portal.GET("/:id", h.Get)
	portal.GET("/:id/download", h.Download)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rep, err := h.svc.Generate(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	reps, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reps, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	reps, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reps, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyReports(c echo.Context) error {
	ref, err := uuid.Parse(auth.PatientRefFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "account is not linked to a patient record")
	}
	pg := pagination.FromContext(c)
	reps, total, err := h.svc.ListByPatient(c.Request().Context(), ref, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reps, total, pg.Limit, pg.Offset))
}

func (h *Handler) Download(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rep, body, err := h.svc.Download(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	defer body.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+rep.ReportID+`.json"`)
	return c.Stream(http.StatusOK, rep.ContentType, body)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
