package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/idgen"
	"github.com/medilab/lims/internal/platform/validate"
)

type Service struct {
	repo     Repository
	ids      *idgen.Generator
	activity activitylog.Recorder
	now      func() time.Time
}

func NewService(repo Repository, ids *idgen.Generator, activity activitylog.Recorder) *Service {
	return &Service{repo: repo, ids: ids, activity: activity, now: time.Now}
}

// normalize trims free text and upper-cases the NIC letter.
func normalize(p *Patient) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.NIC = validate.NormalizeNIC(p.NIC)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	p.Address = strings.TrimSpace(p.Address)
}

func (s *Service) validate(p *Patient) error {
	switch {
	case p.FullName == "":
		return apperr.Validation("full_name is required")
	case p.NIC == "":
		return apperr.Validation("nic is required")
	case p.DateOfBirth.IsZero():
		return apperr.Validation("date_of_birth is required")
	case p.Gender == "":
		return apperr.Validation("gender is required")
	case p.Phone == "":
		return apperr.Validation("phone is required")
	}
	if !validate.NIC(p.NIC) {
		return apperr.Validation("invalid NIC format: use 9 digits followed by V or X, or 12 digits")
	}
	if !validate.Phone(p.Phone) {
		return apperr.Validation("invalid phone number: use 10 digits starting with 0")
	}
	if p.Email != "" && !validate.Email(p.Email) {
		return apperr.Validation("invalid email address")
	}
	if !p.DateOfBirth.BeforeDay(s.now()) {
		return apperr.Validation("date_of_birth must be in the past")
	}
	if !validGenders[p.Gender] {
		return apperr.Validation("gender must be Male, Female or Other")
	}
	if p.Status != "" && !validStatuses[p.Status] {
		return apperr.Validation("invalid status %q", p.Status)
	}
	return nil
}

// ensureUniqueNIC fails when another live patient already holds nic.
func (s *Service) ensureUniqueNIC(ctx context.Context, nic string, self uuid.UUID) error {
	existing, err := s.repo.GetByNIC(ctx, nic)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return apperr.Conflict("a patient with NIC %s already exists (%s)", nic, existing.PatientID)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	normalize(p)
	p.Status = StatusActive
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.ensureUniqueNIC(ctx, p.NIC, uuid.Nil); err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	p.CreatedBy, p.UpdatedBy = actor, actor

	err := idgen.WithRetry(ctx, s.ids, idgen.PrefixPatient, idgen.DefaultAttempts, func(id string) error {
		p.PatientID = id
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityPatient, activitylog.ActionCreate, p.PatientID,
		map[string]interface{}{"full_name": p.FullName, "nic": p.NIC})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNIC(ctx context.Context, nic string) (*Patient, error) {
	return s.repo.GetByNIC(ctx, validate.NormalizeNIC(nic))
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.NIC = validate.NormalizeNIC(params.NIC)
	if params.Status != "" && !validStatuses[params.Status] {
		return nil, 0, apperr.Validation("invalid status %q", params.Status)
	}
	if params.IsZero() {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Update replaces the editable fields of a live patient. The human id,
// creation stamp and soft-delete flag are preserved.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	normalize(p)
	if p.Status == "" {
		p.Status = existing.Status
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if p.NIC != existing.NIC {
		if err := s.ensureUniqueNIC(ctx, p.NIC, p.ID); err != nil {
			return err
		}
	}
	p.PatientID = existing.PatientID
	p.CreatedBy = existing.CreatedBy
	p.CreatedAt = existing.CreatedAt
	p.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.activity.Log(ctx, p.UpdatedBy, activitylog.EntityPatient, activitylog.ActionUpdate, p.PatientID, nil)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Patient, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status %q", status)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := p.Status
	p.Status = status
	p.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.activity.Log(ctx, p.UpdatedBy, activitylog.EntityPatient, activitylog.ActionStatusChange, p.PatientID,
		map[string]interface{}{"from": from, "to": status})
	return p, nil
}

// Delete hides the patient from every read and marks it Inactive.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	if err := s.repo.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityPatient, activitylog.ActionDelete, p.PatientID, nil)
	return nil
}
