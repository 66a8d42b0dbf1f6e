package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, path, authHeader string) (Identity, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)

	var got Identity
	err := mw(func(c echo.Context) error {
		got, _ = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	return got, err
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	token, _, _ := iss.Issue(Identity{UserID: "u-7", Role: RoleDoctor})

	id, err := runMiddleware(t, JWTMiddleware(iss, NewRevocationList()), "/api/v1/patients", "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u-7" || id.Role != RoleDoctor {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	_, err := runMiddleware(t, JWTMiddleware(iss, nil), "/api/v1/patients", "")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_BadScheme(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	_, err := runMiddleware(t, JWTMiddleware(iss, nil), "/api/v1/patients", "Basic abc")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	for _, p := range []string{"/health", "/health/db", "/metrics", "/api/v1/auth/login"} {
		if _, err := runMiddleware(t, JWTMiddleware(iss, nil), p, ""); err != nil {
			t.Errorf("%s: expected public access, got %v", p, err)
		}
	}
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	token, exp, _ := iss.Issue(Identity{UserID: "u-7", Role: RoleStaff})
	claims, _ := iss.Parse(token)

	revoked := NewRevocationList()
	revoked.Revoke(claims.ID, exp)

	_, err := runMiddleware(t, JWTMiddleware(iss, revoked), "/api/v1/patients", "Bearer "+token)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %v", err)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	id, err := runMiddleware(t, DevAuthMiddleware(iss, nil), "/api/v1/users", "")
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != "dev-user" || id.Role != RoleAdmin {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestDevAuthMiddleware_StillVerifiesTokens(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	_, err := runMiddleware(t, DevAuthMiddleware(iss, nil), "/api/v1/users", "Bearer garbage")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func runUpgrade(t *testing.T, mw echo.MiddlewareFunc, target string, upgrade bool) (Identity, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if upgrade {
		req.Header.Set(echo.HeaderUpgrade, "websocket")
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/live")

	var got Identity
	err := mw(func(c echo.Context) error {
		got, _ = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	return got, err
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	token, _, _ := iss.Issue(Identity{UserID: "u-9", Role: RoleTechnician})
	mw := JWTMiddleware(iss, NewRevocationList())

	id, err := runUpgrade(t, mw, "/api/v1/live?access_token="+token, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u-9" {
		t.Errorf("unexpected identity %+v", id)
	}

	// Plain requests must still use the header.
	if _, err := runUpgrade(t, mw, "/api/v1/live?access_token="+token, false); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 without upgrade, got %v", err)
	}
}

func TestDevAuthMiddleware_VerifiesWebSocketToken(t *testing.T) {
	iss := NewIssuer(testKey, "lims", time.Hour)
	_, err := runUpgrade(t, DevAuthMiddleware(iss, nil), "/api/v1/live?access_token=garbage", true)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %v", err)
	}
}
