package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	claimsKey   contextKey = "claims"
)

// Identity is the signed-in user as seen by handlers and services.
type Identity struct {
	UserID string
	Role   string
	// PatientRef links a Patient account to its patient record.
	PatientRef string
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity placed by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

func PatientRefFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.PatientRef
}

func claimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// websocketToken returns the access_token query parameter of a WebSocket
// upgrade. Browsers cannot set headers on the handshake.
func websocketToken(c echo.Context) string {
	if !strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket") {
		return ""
	}
	return c.QueryParam("access_token")
}

func hasCredentials(c echo.Context) bool {
	return c.Request().Header.Get(echo.HeaderAuthorization) != "" || websocketToken(c) != ""
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		if token := websocketToken(c); token != "" {
			return token, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return parts[1], nil
}

// JWTMiddleware authenticates bearer tokens issued by the Issuer. Public
// paths pass through untouched; revoked tokens are refused.
func JWTMiddleware(issuer *Issuer, revoked *RevocationList) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			claims, err := issuer.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if revoked != nil && revoked.IsRevoked(claims.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			ctx := WithIdentity(c.Request().Context(), Identity{
				UserID:     claims.Subject,
				Role:       claims.Role,
				PatientRef: claims.PatientRef,
			})
			ctx = context.WithValue(ctx, claimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as an Admin
// "dev-user". Requests that do carry a token are still verified.
func DevAuthMiddleware(issuer *Issuer, revoked *RevocationList) echo.MiddlewareFunc {
	strict := JWTMiddleware(issuer, revoked)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := strict(next)
		return func(c echo.Context) error {
			if hasCredentials(c) {
				return verified(c)
			}
			ctx := WithIdentity(c.Request().Context(), Identity{UserID: "dev-user", Role: RoleAdmin})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
