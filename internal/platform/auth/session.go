package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
)

// Account is the public profile returned by login and /auth/me.
type Account struct {
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	PatientRef string `json:"patient_ref,omitempty"`
}

// Accounts verifies credentials and loads profiles. The user service
// implements it.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (*Account, error)
	Profile(ctx context.Context, userID string) (*Account, error)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *Account  `json:"user"`
	Home      string    `json:"home"`
}

type meResponse struct {
	User *Account `json:"user"`
	Home string   `json:"home"`
}

// SessionHandler serves sign-in, sign-out and the current profile.
type SessionHandler struct {
	accounts Accounts
	issuer   *Issuer
	revoked  *RevocationList
}

func NewSessionHandler(accounts Accounts, issuer *Issuer, revoked *RevocationList) *SessionHandler {
	return &SessionHandler{accounts: accounts, issuer: issuer, revoked: revoked}
}

func (h *SessionHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.GET("/me", h.Me)
	g.POST("/logout", h.Logout)
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	acct, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccountInactive):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case err != nil:
		log.Error().Err(err).Str("email", req.Email).Msg("login failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	token, exp, err := h.issuer.Issue(Identity{
		UserID:     acct.UserID,
		Role:       acct.Role,
		PatientRef: acct.PatientRef,
	})
	if err != nil {
		log.Error().Err(err).Msg("issue session token")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      acct,
		Home:      HomePath(acct.Role),
	})
}

func (h *SessionHandler) Me(c echo.Context) error {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	acct, err := h.accounts.Profile(c.Request().Context(), id.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, meResponse{User: acct, Home: HomePath(acct.Role)})
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *SessionHandler) Logout(c echo.Context) error {
	claims := claimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if h.revoked != nil && claims.ExpiresAt != nil {
		h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	return c.NoContent(http.StatusNoContent)
}
