package lab

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/internal/platform/idgen"
)

// -- Mock Repositories --

type mockSampleRepo struct {
	store map[uuid.UUID]*Sample
}

func (m *mockSampleRepo) Create(_ context.Context, s *Sample) error {
	for _, existing := range m.store {
		if existing.SampleID == s.SampleID {
			return idgen.ErrCollision
		}
	}
	s.ID = uuid.New()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) GetByID(_ context.Context, id uuid.UUID) (*Sample, error) {
	s, ok := m.store[id]
	if !ok || s.IsDeleted {
		return nil, apperr.NotFound("sample not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockSampleRepo) Update(_ context.Context, s *Sample) error {
	if existing, ok := m.store[s.ID]; !ok || existing.IsDeleted {
		return apperr.NotFound("sample not found")
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) SoftDelete(_ context.Context, id uuid.UUID, by string) error {
	s, ok := m.store[id]
	if !ok || s.IsDeleted {
		return apperr.NotFound("sample not found")
	}
	s.IsDeleted, s.UpdatedBy = true, by
	return nil
}

func (m *mockSampleRepo) List(_ context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error) {
	var out []*Sample
	for _, s := range m.store {
		if s.IsDeleted || (f.PatientID != nil && s.PatientID != *f.PatientID) || (f.Status != "" && s.Status != f.Status) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

type mockOrderRepo struct {
	store map[uuid.UUID]*TestOrder
}

func (m *mockOrderRepo) Create(_ context.Context, o *TestOrder) error {
	o.ID = uuid.New()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*TestOrder, error) {
	o, ok := m.store[id]
	if !ok || o.IsDeleted {
		return nil, apperr.NotFound("test order not found")
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *TestOrder) error {
	if existing, ok := m.store[o.ID]; !ok || existing.IsDeleted {
		return apperr.NotFound("test order not found")
	}
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) SoftDelete(_ context.Context, id uuid.UUID, by string) error {
	o, ok := m.store[id]
	if !ok || o.IsDeleted {
		return apperr.NotFound("test order not found")
	}
	o.IsDeleted, o.UpdatedBy = true, by
	return nil
}

func (m *mockOrderRepo) List(_ context.Context, f OrderFilter, limit, offset int) ([]*TestOrder, int, error) {
	var out []*TestOrder
	for _, o := range m.store {
		if o.IsDeleted || (f.PatientID != nil && o.PatientID != *f.PatientID) || (f.Status != "" && o.Status != f.Status) {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

type mockResultRepo struct {
	store  map[uuid.UUID]*TestResult
	orders *mockOrderRepo
	clock  time.Time
}

func (m *mockResultRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *mockResultRepo) Create(_ context.Context, r *TestResult) error {
	for _, existing := range m.store {
		if !existing.IsDeleted && existing.TestOrderID == r.TestOrderID && existing.TestCode == r.TestCode {
			return apperr.Conflict("test result already exists")
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockResultRepo) GetByID(_ context.Context, id uuid.UUID) (*TestResult, error) {
	r, ok := m.store[id]
	if !ok || r.IsDeleted {
		return nil, apperr.NotFound("test result not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockResultRepo) GetLive(_ context.Context, orderID uuid.UUID, code string) (*TestResult, error) {
	for _, r := range m.store {
		if !r.IsDeleted && r.TestOrderID == orderID && r.TestCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("test result not found")
}

func (m *mockResultRepo) Update(_ context.Context, r *TestResult) error {
	if existing, ok := m.store[r.ID]; !ok || existing.IsDeleted {
		return apperr.NotFound("test result not found")
	}
	r.UpdatedAt = m.tick()
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockResultRepo) SoftDelete(_ context.Context, id uuid.UUID, by string) error {
	r, ok := m.store[id]
	if !ok || r.IsDeleted {
		return apperr.NotFound("test result not found")
	}
	r.IsDeleted, r.UpdatedBy = true, by
	return nil
}

func (m *mockResultRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*TestResult, error) {
	var out []*TestResult
	for _, r := range m.store {
		if !r.IsDeleted && r.TestOrderID == orderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestCode < out[j].TestCode })
	return out, nil
}

func (m *mockResultRepo) ListByStatus(_ context.Context, status string, asc bool, limit, offset int) ([]*TestResult, int, error) {
	var out []*TestResult
	for _, r := range m.store {
		if !r.IsDeleted && r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, len(out), nil
}

func (m *mockResultRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status string) ([]*TestResult, error) {
	var out []*TestResult
	for _, r := range m.store {
		o := m.orders.store[r.TestOrderID]
		if r.IsDeleted || o == nil || o.PatientID != patientID || (status != "" && r.Status != status) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// -- Fakes --

type fakePatients map[uuid.UUID]*patient.Patient

func (f fakePatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("patient not found")
}

type fakeCatalog map[string]*catalog.TestDefinition

func (f fakeCatalog) Resolve(_ context.Context, codes []string) (map[string]*catalog.TestDefinition, error) {
	out := make(map[string]*catalog.TestDefinition, len(codes))
	var missing []string
	for _, c := range codes {
		d, ok := f[c]
		if !ok || !d.Active {
			missing = append(missing, c)
			continue
		}
		out[c] = d
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("unknown or inactive test codes: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func (f fakeCatalog) Definitions(_ context.Context, codes []string) (map[string]*catalog.TestDefinition, error) {
	out := make(map[string]*catalog.TestDefinition, len(codes))
	for _, c := range codes {
		if d, ok := f[c]; ok {
			out[c] = d
		}
	}
	return out, nil
}

type loggedChange struct {
	entity, action, id string
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []loggedChange
}

func (r *recordingActivity) Log(_ context.Context, _, entityType, action, entityID string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, loggedChange{entityType, action, entityID})
}

func (r *recordingActivity) actions(entity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.entity == entity {
			out = append(out, e.action)
		}
	}
	return out
}

// -- Fixture --

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	samples  *mockSampleRepo
	orders   *mockOrderRepo
	results  *mockResultRepo
	activity *recordingActivity
	tests    fakeCatalog
	patient  uuid.UUID
	other    uuid.UUID
}

func newFixture() *fixture {
	orders := &mockOrderRepo{store: make(map[uuid.UUID]*TestOrder)}
	f := &fixture{
		samples:  &mockSampleRepo{store: make(map[uuid.UUID]*Sample)},
		orders:   orders,
		results:  &mockResultRepo{store: make(map[uuid.UUID]*TestResult), orders: orders, clock: testNow},
		activity: &recordingActivity{},
		patient:  uuid.New(),
		other:    uuid.New(),
	}
	patients := fakePatients{
		f.patient: {ID: f.patient, PatientID: "PAT-20250101-1001", FullName: "Nimal Perera"},
		f.other:   {ID: f.other, PatientID: "PAT-20250101-1002", FullName: "Kamala Silva"},
	}
	f.tests = fakeCatalog{
		"FBS": {Code: "FBS", Name: "Fasting Blood Sugar", SampleType: "Blood", Unit: "mg/dL", ReferenceRange: "70-100", Active: true},
		"HB":  {Code: "HB", Name: "Haemoglobin", SampleType: "Blood", Unit: "g/dL", ReferenceRange: "12-16", Active: true},
		"TSH": {Code: "TSH", Name: "Thyroid Stimulating Hormone", SampleType: "Blood", Unit: "mIU/L", ReferenceRange: "n/a", Active: true},
	}
	f.svc = NewService(Repos{Samples: f.samples, Orders: f.orders, Results: f.results}, patients, f.tests, db.NoTx{},
		idgen.NewWithClock(func() time.Time { return testNow }, 7), f.activity, nil)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func as(role, user string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: user, Role: role})
}

func techCtx() context.Context   { return as(auth.RoleTechnician, "tech-1") }
func doctorCtx() context.Context { return as(auth.RoleDoctor, "doc-1") }

// order creates a Pending order for the fixture patient.
func (f *fixture) order(codes ...string) *TestOrder {
	o := &TestOrder{PatientID: f.patient, Tests: codes}
	if err := f.svc.CreateOrder(techCtx(), o); err != nil {
		panic(err)
	}
	return o
}
