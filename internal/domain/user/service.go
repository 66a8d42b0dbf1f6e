package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/validate"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	activity activitylog.Recorder
	cost     int
}

func NewService(repo Repository, patients PatientLookup, activity activitylog.Recorder) *Service {
	return &Service{repo: repo, patients: patients, activity: activity, cost: bcrypt.DefaultCost}
}

var _ auth.Accounts = (*Service)(nil)

func normalize(u *User) {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
}

func (s *Service) validate(ctx context.Context, u *User) error {
	switch {
	case u.FullName == "":
		return apperr.Validation("full_name is required")
	case u.Email == "":
		return apperr.Validation("email is required")
	case !validate.Email(u.Email):
		return apperr.Validation("invalid email address")
	case !auth.IsValidRole(u.Role):
		return apperr.Validation("role must be one of %s", strings.Join(auth.AllRoles(), ", "))
	case u.Status != "" && !validStatuses[u.Status]:
		return apperr.Validation("invalid status %q", u.Status)
	case u.Phone != "" && !validate.Phone(u.Phone):
		return apperr.Validation("invalid phone number: use 10 digits starting with 0")
	}
	if u.PatientRef == nil {
		return nil
	}
	if u.Role != auth.RolePatient {
		return apperr.Validation("patient_ref is only allowed for %s accounts", auth.RolePatient)
	}
	if _, err := s.patients.Get(ctx, *u.PatientRef); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("patient %s does not exist", *u.PatientRef)
		}
		return err
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *Service) ensureUniqueEmail(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return apperr.Conflict("a user with email %s already exists", email)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, u *User, password string) error {
	normalize(u)
	if u.Status == "" {
		u.Status = StatusActive
	}
	if err := s.validate(ctx, u); err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.ensureUniqueEmail(ctx, u.Email, uuid.Nil); err != nil {
		return err
	}
	u.PasswordHash = hash
	actor := auth.UserIDFromContext(ctx)
	if actor == "" {
		actor = "system"
	}
	u.CreatedBy, u.UpdatedBy = actor, actor
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityUser, activitylog.ActionCreate, u.ID.String(),
		map[string]interface{}{"email": u.Email, "role": u.Role})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	if f.Role != "" && !auth.IsValidRole(f.Role) {
		return nil, 0, apperr.Validation("invalid role %q", f.Role)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Update replaces profile fields and role. Password and status have their
// own operations.
func (s *Service) Update(ctx context.Context, u *User) error {
	existing, err := s.repo.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	normalize(u)
	u.Status = existing.Status
	if err := s.validate(ctx, u); err != nil {
		return err
	}
	if u.Email != existing.Email {
		if err := s.ensureUniqueEmail(ctx, u.Email, u.ID); err != nil {
			return err
		}
	}
	u.PasswordHash = existing.PasswordHash
	u.CreatedBy = existing.CreatedBy
	u.CreatedAt = existing.CreatedAt
	u.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	details := map[string]interface{}{}
	if u.Role != existing.Role {
		details["role"] = map[string]string{"from": existing.Role, "to": u.Role}
	}
	s.activity.Log(ctx, u.UpdatedBy, activitylog.EntityUser, activitylog.ActionUpdate, u.ID.String(), details)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*User, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status %q", status)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := u.Status
	u.Status = status
	u.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.activity.Log(ctx, u.UpdatedBy, activitylog.EntityUser, activitylog.ActionStatusChange, u.ID.String(),
		map[string]interface{}{"from": from, "to": status})
	return u, nil
}

// ChangePassword sets a new password. Callers other than Admin must supply
// the current one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		if auth.UserIDFromContext(ctx) != id.String() {
			return apperr.Forbidden("cannot change another user's password")
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return apperr.Validation("current password is incorrect")
		}
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.activity.Log(ctx, u.UpdatedBy, activitylog.EntityUser, activitylog.ActionUpdate, u.ID.String(),
		map[string]interface{}{"password": "changed"})
	return nil
}

// Delete deactivates the account. Users are never removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if auth.UserIDFromContext(ctx) == id.String() {
		return apperr.Conflict("you cannot deactivate your own account")
	}
	_, err := s.UpdateStatus(ctx, id, StatusInactive)
	return err
}

// Authenticate checks credentials for sign-in. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*auth.Account, error) {
	u, err := s.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return nil, auth.ErrAccountInactive
	}
	return u.Account(), nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*auth.Account, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Account(), nil
}
