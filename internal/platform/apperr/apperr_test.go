package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("patient not found"), http.StatusNotFound},
		{"validation", Validation("phone is required"), http.StatusBadRequest},
		{"conflict", Conflict("duplicate NIC"), http.StatusConflict},
		{"transition", Transition("Approved", "Draft"), http.StatusConflict},
		{"forbidden", Forbidden("not your record"), http.StatusForbidden},
		{"wrapped validation", fmt.Errorf("create: %w", Validation("bad")), http.StatusBadRequest},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidation_MessageIsVerbatim(t *testing.T) {
	err := Validation("Invalid NIC format. Must be 9 digits with V/X or 12 digits.")
	if err.Error() != "Invalid NIC format. Must be 9 digits with V/X or 12 digits." {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}
}

func TestHTTP_HidesInternalErrors(t *testing.T) {
	he := HTTP(errors.New("pq: connection refused"))
	if he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", he.Message)
	}

	he = HTTP(NotFound("invoice not found"))
	if he.Code != http.StatusNotFound || he.Message != "invoice not found" {
		t.Errorf("unexpected http error %d %v", he.Code, he.Message)
	}
}
