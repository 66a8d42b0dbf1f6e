package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
)

type Service struct {
	repo     Repository
	activity activitylog.Recorder
}

func NewService(repo Repository, activity activitylog.Recorder) *Service {
	return &Service{repo: repo, activity: activity}
}

func normalize(d *TestDefinition) {
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	d.Name = strings.TrimSpace(d.Name)
	d.Unit = strings.TrimSpace(d.Unit)
	d.ReferenceRange = strings.TrimSpace(d.ReferenceRange)
}

func validateDef(d *TestDefinition) error {
	if !codeRe.MatchString(d.Code) {
		return apperr.Validation("code must be 2-32 upper-case letters, digits, '-' or '_'")
	}
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	if !ValidSampleType(d.SampleType) {
		return apperr.Validation("sample_type must be one of %s", strings.Join(SampleTypes, ", "))
	}
	if d.Price < 0 {
		return apperr.Validation("price must not be negative")
	}
	if d.ReferenceRange != "" {
		if _, ok := ParseRange(d.ReferenceRange); !ok {
			return apperr.Validation("reference_range %q is not a recognised interval", d.ReferenceRange)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, d *TestDefinition) error {
	normalize(d)
	d.Active = true
	if err := validateDef(d); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return err
	}
	s.activity.Log(ctx, auth.UserIDFromContext(ctx), activitylog.EntityCatalog, activitylog.ActionCreate, d.Code, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, code string) (*TestDefinition, error) {
	return s.repo.Get(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Service) Update(ctx context.Context, d *TestDefinition) error {
	normalize(d)
	existing, err := s.repo.Get(ctx, d.Code)
	if err != nil {
		return err
	}
	d.Active = existing.Active
	if err := validateDef(d); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	s.activity.Log(ctx, auth.UserIDFromContext(ctx), activitylog.EntityCatalog, activitylog.ActionUpdate, d.Code, nil)
	return nil
}

// Deactivate withdraws a test from ordering. Existing orders keep it.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	d, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if !d.Active {
		return nil
	}
	d.Active = false
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	s.activity.Log(ctx, auth.UserIDFromContext(ctx), activitylog.EntityCatalog, activitylog.ActionDelete, d.Code, nil)
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*TestDefinition, error) {
	return s.repo.List(ctx, activeOnly)
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, strings.ToUpper(strings.TrimSpace(c)))
	}
	return out
}

// Definitions returns the definitions for codes keyed by code, withdrawn
// ones included. Codes with no definition are absent from the map.
func (s *Service) Definitions(ctx context.Context, codes []string) (map[string]*TestDefinition, error) {
	defs, err := s.repo.GetMany(ctx, normalizeCodes(codes))
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*TestDefinition, len(defs))
	for _, d := range defs {
		byCode[d.Code] = d
	}
	return byCode, nil
}

// Resolve returns the active definitions for codes, keyed by code. Unknown
// or withdrawn codes are a validation error naming them.
func (s *Service) Resolve(ctx context.Context, codes []string) (map[string]*TestDefinition, error) {
	wanted := normalizeCodes(codes)
	defs, err := s.repo.GetMany(ctx, wanted)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*TestDefinition, len(defs))
	for _, d := range defs {
		if d.Active {
			byCode[d.Code] = d
		}
	}
	var missing []string
	for _, c := range wanted {
		if byCode[c] == nil {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperr.Validation("unknown or inactive test codes: %s", strings.Join(missing, ", "))
	}
	return byCode, nil
}

// Import upserts every definition, as used by the seed command.
func (s *Service) Import(ctx context.Context, defs []*TestDefinition) (int, error) {
	for i, d := range defs {
		if err := s.repo.Upsert(ctx, d); err != nil {
			return i, err
		}
	}
	return len(defs), nil
}
