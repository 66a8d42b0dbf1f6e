package activitylog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_List(t *testing.T) {
	svc, _ := newTestService()
	svc.Log(context.Background(), "u-1", EntityUser, ActionCreate, "u-2", nil)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity-logs", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || body.Limit != DefaultLimit {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestHandler_ListByEntity(t *testing.T) {
	svc, _ := newTestService()
	svc.Log(context.Background(), "u-1", EntityInvoice, ActionCreate, "INV-1", nil)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("type", "id")
	c.SetParamValues(EntityInvoice, "INV-1")

	if err := h.ListByEntity(c); err != nil {
		t.Fatal(err)
	}
	var entries []Entry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}
