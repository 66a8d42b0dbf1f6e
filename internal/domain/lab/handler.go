package lab

import (
	"context"
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
	clinical := auth.RequireRole(auth.ClinicalRoles...)
	lab := auth.RequireRole(auth.LabRoles...)
	doctor := auth.RequireRole(auth.RoleDoctor)
	admin := auth.RequireRole(auth.RoleAdmin)

	api.GET("/samples", h.ListSamples, clinical)
	api.GET("/samples/:id", h.GetSample, clinical)
	api.POST("/samples", h.CreateSample, lab)
	api.PUT("/samples/:id", h.UpdateSample, lab)
	api.POST("/samples/:id/status", h.UpdateSampleStatus, lab)
	api.DELETE("/samples/:id", h.DeleteSample, admin)

	api.GET("/orders", h.ListOrders, clinical)
	api.GET("/orders/:id", h.GetOrder, clinical)
	api.GET("/orders/:id/results", h.ResultsByOrder, clinical)
	api.POST("/orders", h.CreateOrder, lab)
	api.PUT("/orders/:id", h.UpdateOrder, lab)
	api.POST("/orders/:id/status", h.UpdateOrderStatus, lab)
	api.POST("/orders/:id/results", h.SaveResults, lab)
	api.POST("/orders/:id/submit", h.SubmitOrder, lab)
	api.DELETE("/orders/:id", h.DeleteOrder, admin)

	api.GET("/results/pending", h.PendingApprovals, doctor)
	api.GET("/results/approved", h.ApprovedResults, doctor)
	api.GET("/results/patient/:id", h.ResultsByPatient, clinical)
	api.GET("/results/:id", h.GetResult, clinical)
	api.POST("/results/:id/submit", h.SubmitResult, lab)
	api.POST("/results/:id/approve", h.Approve, doctor)
	api.POST("/results/:id/reject", h.Reject, doctor)
	api.POST("/results/:id/return", h.Return, doctor)

	api.GET("/portal/results", h.MyResults, auth.RequireRole(auth.RolePatient))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

type statusRequest struct {
	Status string `json:"status"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type resultsRequest struct {
	Results []ResultInput `json:"results"`
}

// -- samples --

func (h *Handler) CreateSample(c echo.Context) error {
	var s Sample
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSample(c.Request().Context(), &s); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSample(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetSample(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSamples(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID, err := optionalUUID(c, "patient_id")
	if err != nil {
		return err
	}
	f := SampleFilter{PatientID: patientID, Status: c.QueryParam("status")}
	samples, total, err := h.svc.ListSamples(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(samples, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateSample(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var s Sample
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = id
	if err := h.svc.UpdateSample(c.Request().Context(), &s); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSampleStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.UpdateSampleStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSample(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSample(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- orders --

func (h *Handler) CreateOrder(c echo.Context) error {
	var o TestOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOrder(c.Request().Context(), &o); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID, err := optionalUUID(c, "patient_id")
	if err != nil {
		return err
	}
	f := OrderFilter{PatientID: patientID, Status: c.QueryParam("status")}
	orders, total, err := h.svc.ListOrders(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var o TestOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.ID = id
	if err := h.svc.UpdateOrder(c.Request().Context(), &o); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.UpdateOrderStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOrder(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- results --

func (h *Handler) SaveResults(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req resultsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	results, err := h.svc.SaveResults(c.Request().Context(), id, req.Results)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) SubmitOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	results, err := h.svc.SubmitOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) ResultsByOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	results, err := h.svc.ResultsByOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) GetResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetResult(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) SubmitResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.SubmitResult(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.ApproveResult(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Reject(c echo.Context) error {
	return h.decide(c, h.svc.RejectResult)
}

func (h *Handler) Return(c echo.Context) error {
	return h.decide(c, h.svc.ReturnResult)
}

func (h *Handler) decide(c echo.Context, fn func(ctx context.Context, id uuid.UUID, reason string) (*TestResult, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := fn(c.Request().Context(), id, req.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) PendingApprovals(c echo.Context) error {
	pg := pagination.FromContext(c)
	results, total, err := h.svc.PendingApprovals(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApprovedResults(c echo.Context) error {
	pg := pagination.FromContext(c)
	results, total, err := h.svc.ApprovedResults(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, total, pg.Limit, pg.Offset))
}

func (h *Handler) ResultsByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	results, err := h.svc.ResultsByPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, results)
}

// MyResults returns the approved results of the signed-in patient.
func (h *Handler) MyResults(c echo.Context) error {
	ref, err := uuid.Parse(auth.PatientRefFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "account is not linked to a patient record")
	}
	results, err := h.svc.ResultsByPatient(c.Request().Context(), ref)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, results)
}
