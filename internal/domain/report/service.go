package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/lab"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/blobstore"
	"github.com/medilab/lims/internal/platform/idgen"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// LabResults is the part of the lab service reports read from.
type LabResults interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*lab.TestOrder, error)
	ResultsByOrder(ctx context.Context, orderID uuid.UUID) ([]*lab.TestResult, error)
	ResultsByPatient(ctx context.Context, patientID uuid.UUID) ([]*lab.TestResult, error)
}

// TestNames looks up catalog names for report lines, withdrawn tests
// included.
type TestNames interface {
	Definitions(ctx context.Context, codes []string) (map[string]*catalog.TestDefinition, error)
}

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	patients PatientLookup
	lab      LabResults
	names    TestNames
	ids      *idgen.Generator
	activity activitylog.Recorder
	now      func() time.Time
}

func NewService(repo Repository, blobs blobstore.Store, patients PatientLookup, labResults LabResults,
	names TestNames, ids *idgen.Generator, activity activitylog.Recorder) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		patients: patients,
		lab:      labResults,
		names:    names,
		ids:      ids,
		activity: activity,
		now:      time.Now,
	}
}

// approvedResults collects the approved results the report covers.
func (s *Service) approvedResults(ctx context.Context, req GenerateRequest) ([]*lab.TestResult, string, error) {
	var all []*lab.TestResult
	orderRef := ""
	if req.TestOrderID != nil {
		o, err := s.lab.GetOrder(ctx, *req.TestOrderID)
		if err != nil {
			return nil, "", err
		}
		if o.PatientID != req.PatientID {
			return nil, "", apperr.Validation("test order %s belongs to another patient", o.TestOrderID)
		}
		orderRef = o.TestOrderID
		if all, err = s.lab.ResultsByOrder(ctx, o.ID); err != nil {
			return nil, "", err
		}
	} else {
		var err error
		if all, err = s.lab.ResultsByPatient(ctx, req.PatientID); err != nil {
			return nil, "", err
		}
	}
	var approved []*lab.TestResult
	for _, r := range all {
		if r.Status == lab.ResultApproved {
			approved = append(approved, r)
		}
	}
	sort.Slice(approved, func(i, j int) bool { return approved[i].TestCode < approved[j].TestCode })
	return approved, orderRef, nil
}

// lines turns results into document lines. A code with no catalog entry
// falls back to the bare code.
func (s *Service) lines(ctx context.Context, results []*lab.TestResult) []DocumentLine {
	codes := make([]string, 0, len(results))
	for _, r := range results {
		codes = append(codes, r.TestCode)
	}
	defs, err := s.names.Definitions(ctx, codes)
	if err != nil {
		log.Warn().Err(err).Msg("report: catalog names unavailable")
		defs = nil
	}
	out := make([]DocumentLine, 0, len(results))
	for _, r := range results {
		name := r.TestCode
		if d := defs[r.TestCode]; d != nil {
			name = d.Name
		}
		line := DocumentLine{
			TestCode:       r.TestCode,
			TestName:       name,
			Value:          r.ResultValue,
			Unit:           r.Unit,
			ReferenceRange: r.ReferenceRange,
			Flag:           r.Flag,
		}
		if r.ApprovedBy != nil {
			line.ApprovedBy = *r.ApprovedBy
		}
		if r.ApprovedAt != nil {
			line.ApprovedAt = r.ApprovedAt.UTC()
		}
		out = append(out, line)
	}
	return out
}

// Generate renders a report of approved results, stores the document and
// records its metadata.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Report, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	req.ReportType = strings.TrimSpace(req.ReportType)
	if req.ReportType == "" {
		req.ReportType = DefaultType
	}
	p, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	results, orderRef, err := s.approvedResults(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apperr.Validation("no approved results to report")
	}

	actor := auth.UserIDFromContext(ctx)
	now := s.now().UTC()
	doc := &Document{
		ReportType:  req.ReportType,
		GeneratedAt: now,
		GeneratedBy: actor,
		Patient: DocumentPatient{
			PatientID:   p.PatientID,
			FullName:    p.FullName,
			NIC:         p.NIC,
			Gender:      p.Gender,
			DateOfBirth: p.DateOfBirth,
			Age:         p.Age(now),
		},
		TestOrderID: orderRef,
		Results:     s.lines(ctx, results),
	}
	rep := &Report{
		PatientID:   req.PatientID,
		TestOrderID: req.TestOrderID,
		ReportType:  req.ReportType,
		ContentType: ContentTypeJSON,
		GeneratedBy: actor,
		UpdatedBy:   actor,
	}

	err = idgen.WithRetry(ctx, s.ids, idgen.PrefixReport, idgen.DefaultAttempts, func(id string) error {
		doc.ReportID = id
		body, err := Render(doc)
		if err != nil {
			return err
		}
		rep.ReportID = id
		rep.FilePath = blobKey(id)
		if _, err := s.blobs.Put(ctx, rep.FilePath, ContentTypeJSON, bytes.NewReader(body)); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, rep); err != nil {
			if derr := s.blobs.Delete(ctx, rep.FilePath); derr != nil {
				log.Warn().Err(derr).Str("key", rep.FilePath).Msg("remove orphaned report document")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, actor, activitylog.EntityReport, activitylog.ActionCreate, rep.ReportID,
		map[string]interface{}{"results": len(results), "test_order_id": orderRef})
	return rep, nil
}

// canRead limits Patient accounts to their own record.
func canRead(ctx context.Context, patientID uuid.UUID) error {
	if auth.RoleFromContext(ctx) != auth.RolePatient {
		return nil
	}
	if auth.PatientRefFromContext(ctx) != patientID.String() {
		return apperr.Forbidden("reports of another patient are not available")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(ctx, rep.PatientID); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	return s.repo.List(ctx, nil, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	if err := canRead(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, &patientID, limit, offset)
}

// Download opens the stored document. The caller closes the reader.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Report, io.ReadCloser, error) {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, rep.FilePath)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, apperr.NotFound("report document %s is missing", rep.ReportID)
	}
	if err != nil {
		return nil, nil, err
	}
	return rep, rc, nil
}

// Delete hides the report. The stored document is kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	if err := s.repo.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityReport, activitylog.ActionDelete, rep.ReportID, nil)
	return nil
}
