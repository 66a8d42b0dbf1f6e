package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_CreateAndList(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	body := `{"code":"ESR","name":"Erythrocyte Sedimentation Rate","sample_type":"Blood","unit":"mm/hr","reference_range":"0-20","price":600}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tests", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var defs []TestDefinition
	json.Unmarshal(rec.Body.Bytes(), &defs)
	if len(defs) != 1 || defs[0].Code != "ESR" {
		t.Errorf("unexpected list %s", rec.Body.String())
	}
}

func TestHandler_GetMissing(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("code")
	c.SetParamValues("NOPE")
	err := h.Get(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
