package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilab/lims/internal/platform/auth"
)

// AuditEntry describes one API access.
type AuditEntry struct {
	UserID       string
	Role         string
	ResourceType string
	ResourceID   string
	Action       string
	Method       string
	Path         string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Timestamp    time.Time
}

// Audit logs a type=lab_audit event for every /api/v1/ call after the
// handler has run.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c, err)
			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden || entry.StatusCode == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "lab_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("api_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	id, _ := auth.IdentityFromContext(req.Context())
	status := c.Response().Status
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
	}
	rid, _ := c.Get("request_id").(string)
	resource, resourceID := splitResource(req.URL.Path)
	return AuditEntry{
		UserID:       id.UserID,
		Role:         id.Role,
		ResourceType: resource,
		ResourceID:   resourceID,
		Action:       actionFor(req.Method, req.URL.Path),
		Method:       req.Method,
		Path:         req.URL.Path,
		IPAddress:    c.RealIP(),
		RequestID:    rid,
		StatusCode:   status,
		Timestamp:    time.Now().UTC(),
	}
}

// actionFor maps the method to an action. Workflow sub-paths such as
// /results/:id/approve report their verb instead.
func actionFor(method, path string) string {
	if method == http.MethodPost {
		last := path[strings.LastIndex(path, "/")+1:]
		switch last {
		case "submit", "approve", "reject", "return", "payments", "adjust", "status", "login", "logout":
			return last
		}
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResource returns the collection and item segments of an /api/v1 path:
// /api/v1/patients/123 -> ("patients", "123").
func splitResource(path string) (string, string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	switch {
	case len(segs) == 0 || segs[0] == "":
		return "unknown", ""
	case len(segs) == 1:
		return segs[0], ""
	default:
		return segs[0], segs[1]
	}
}
