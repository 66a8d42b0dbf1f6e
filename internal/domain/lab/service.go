package lab

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/internal/platform/idgen"
	"github.com/medilab/lims/internal/platform/live"
)

// PatientLookup is the part of the patient service the lab needs.
type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// TestCatalog resolves test codes to catalog definitions. Resolve admits
// only orderable tests; Definitions also returns withdrawn ones.
type TestCatalog interface {
	Resolve(ctx context.Context, codes []string) (map[string]*catalog.TestDefinition, error)
	Definitions(ctx context.Context, codes []string) (map[string]*catalog.TestDefinition, error)
}

// Repos groups the lab repositories.
type Repos struct {
	Samples SampleRepository
	Orders  OrderRepository
	Results ResultRepository
}

type Service struct {
	samples  SampleRepository
	orders   OrderRepository
	results  ResultRepository
	patients PatientLookup
	tests    TestCatalog
	tx       db.Transactor
	ids      *idgen.Generator
	activity activitylog.Recorder
	metrics  *Metrics
	events   EventPublisher
	now      func() time.Time
}

func NewService(repos Repos, patients PatientLookup, tests TestCatalog, tx db.Transactor,
	ids *idgen.Generator, activity activitylog.Recorder, metrics *Metrics) *Service {
	return &Service{
		samples:  repos.Samples,
		orders:   repos.Orders,
		results:  repos.Results,
		patients: patients,
		tests:    tests,
		tx:       tx,
		ids:      ids,
		activity: activity,
		metrics:  metrics,
		now:      time.Now,
	}
}

// change is a status move waiting to be counted and logged. Changes made
// inside a transaction are recorded only after it commits.
type change struct {
	entity   string
	action   string
	entityID string
	from, to string
	details  map[string]interface{}
	// patient is set on order changes so completion can reach the portal.
	patient uuid.UUID
}

// EventPublisher receives workflow notifications after they commit.
type EventPublisher interface {
	Publish(ctx context.Context, event live.Event) error
}

// PublishTo sends status changes to p. Without a publisher none are sent.
func (s *Service) PublishTo(p EventPublisher) {
	s.events = p
}

// topicsFor names who hears about c.
func topicsFor(c change) []string {
	switch c.entity {
	case activitylog.EntityTestResult:
		switch c.to {
		case ResultPendingApproval:
			return []string{live.TopicPendingApprovals}
		case ResultApproved, ResultRejected, ResultReturned:
			return []string{live.TopicReviewed}
		}
	case activitylog.EntityTestOrder:
		if c.to == OrderCompleted && c.patient != uuid.Nil {
			return []string{live.TopicLab, live.PatientTopic(c.patient.String())}
		}
		return []string{live.TopicLab}
	case activitylog.EntitySample:
		return []string{live.TopicLab}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, c change) {
	if s.events == nil || c.from == c.to {
		return
	}
	for _, topic := range topicsFor(c) {
		ev := live.Event{
			Type:      c.action,
			Topic:     topic,
			Entity:    c.entity,
			EntityID:  c.entityID,
			From:      c.from,
			To:        c.to,
			Timestamp: s.now().UTC(),
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("publish lab event")
		}
	}
}

func (s *Service) record(ctx context.Context, changes ...change) {
	actor := auth.UserIDFromContext(ctx)
	for _, c := range changes {
		s.metrics.observe(c.entity, c.from, c.to)
		details := map[string]interface{}{"from": c.from, "to": c.to}
		for k, v := range c.details {
			details[k] = v
		}
		s.activity.Log(ctx, actor, c.entity, c.action, c.entityID, details)
		s.publish(ctx, c)
	}
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	_, err := s.patients.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("patient %s does not exist", id)
	}
	return err
}

// -- samples --

func (s *Service) CreateSample(ctx context.Context, smp *Sample) error {
	smp.Notes = strings.TrimSpace(smp.Notes)
	if !catalog.ValidSampleType(smp.SampleType) {
		return apperr.Validation("sample_type must be one of %s", strings.Join(catalog.SampleTypes, ", "))
	}
	if err := s.requirePatient(ctx, smp.PatientID); err != nil {
		return err
	}
	if smp.CollectionDate.IsZero() {
		smp.CollectionDate = s.now().UTC()
	}
	actor := auth.UserIDFromContext(ctx)
	smp.CollectedBy, smp.UpdatedBy = actor, actor
	smp.Status = SamplePending

	err := idgen.WithRetry(ctx, s.ids, idgen.PrefixSample, idgen.DefaultAttempts, func(id string) error {
		smp.SampleID = id
		return s.samples.Create(ctx, smp)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntitySample, activitylog.ActionCreate, smp.SampleID,
		map[string]interface{}{"sample_type": smp.SampleType})
	return nil
}

func (s *Service) GetSample(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.samples.GetByID(ctx, id)
}

func (s *Service) ListSamples(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error) {
	if f.Status != "" && !sampleFlow.known(f.Status) {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.samples.List(ctx, f, limit, offset)
}

// UpdateSample edits type, collection date and notes. Status moves go
// through UpdateSampleStatus.
func (s *Service) UpdateSample(ctx context.Context, smp *Sample) error {
	existing, err := s.samples.GetByID(ctx, smp.ID)
	if err != nil {
		return err
	}
	if smp.SampleType == "" {
		smp.SampleType = existing.SampleType
	}
	if !catalog.ValidSampleType(smp.SampleType) {
		return apperr.Validation("sample_type must be one of %s", strings.Join(catalog.SampleTypes, ", "))
	}
	if smp.CollectionDate.IsZero() {
		smp.CollectionDate = existing.CollectionDate
	}
	smp.Notes = strings.TrimSpace(smp.Notes)
	smp.SampleID = existing.SampleID
	smp.PatientID = existing.PatientID
	smp.CollectedBy = existing.CollectedBy
	smp.Status = existing.Status
	smp.CreatedAt = existing.CreatedAt
	smp.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.samples.Update(ctx, smp); err != nil {
		return err
	}
	s.activity.Log(ctx, smp.UpdatedBy, activitylog.EntitySample, activitylog.ActionUpdate, smp.SampleID, nil)
	return nil
}

func (s *Service) UpdateSampleStatus(ctx context.Context, id uuid.UUID, status string) (*Sample, error) {
	smp, err := s.samples.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sampleFlow.check(smp.Status, status); err != nil {
		return nil, err
	}
	from := smp.Status
	smp.Status = status
	smp.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.samples.Update(ctx, smp); err != nil {
		return nil, err
	}
	s.record(ctx, change{entity: activitylog.EntitySample, action: activitylog.ActionStatusChange,
		entityID: smp.SampleID, from: from, to: status})
	return smp, nil
}

func (s *Service) DeleteSample(ctx context.Context, id uuid.UUID) error {
	smp, err := s.samples.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	if err := s.samples.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntitySample, activitylog.ActionDelete, smp.SampleID, nil)
	return nil
}

// -- test orders --

// normalizeCodes upper-cases, trims and de-duplicates codes, keeping order.
func normalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// checkTests requires at least one test and that every code not already on
// the order is orderable. Codes kept from the order may since have been
// withdrawn.
func (s *Service) checkTests(ctx context.Context, o *TestOrder, kept []string) error {
	o.Tests = normalizeCodes(o.Tests)
	if len(o.Tests) == 0 {
		return apperr.Validation("at least one test is required")
	}
	var added []string
	for _, c := range o.Tests {
		if !slices.Contains(kept, c) {
			added = append(added, c)
		}
	}
	if len(added) == 0 {
		return nil
	}
	_, err := s.tests.Resolve(ctx, added)
	return err
}

func (s *Service) checkSample(ctx context.Context, o *TestOrder) error {
	if o.SampleID == nil {
		return nil
	}
	smp, err := s.samples.GetByID(ctx, *o.SampleID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("sample %s does not exist", *o.SampleID)
	}
	if err != nil {
		return err
	}
	if smp.PatientID != o.PatientID {
		return apperr.Validation("sample %s belongs to another patient", smp.SampleID)
	}
	return nil
}

func (s *Service) CreateOrder(ctx context.Context, o *TestOrder) error {
	o.Notes = strings.TrimSpace(o.Notes)
	if err := s.requirePatient(ctx, o.PatientID); err != nil {
		return err
	}
	if err := s.checkTests(ctx, o, nil); err != nil {
		return err
	}
	if err := s.checkSample(ctx, o); err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	o.OrderedBy, o.UpdatedBy = actor, actor
	o.Status = OrderPending

	err := idgen.WithRetry(ctx, s.ids, idgen.PrefixTestOrder, idgen.DefaultAttempts, func(id string) error {
		o.TestOrderID = id
		return s.orders.Create(ctx, o)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityTestOrder, activitylog.ActionCreate, o.TestOrderID,
		map[string]interface{}{"tests": o.Tests})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter, limit, offset int) ([]*TestOrder, int, error) {
	if f.Status != "" && !orderFlow.known(f.Status) {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.orders.List(ctx, f, limit, offset)
}

// UpdateOrder edits notes, and the sample and test list while the order is
// still Pending.
func (s *Service) UpdateOrder(ctx context.Context, o *TestOrder) error {
	existing, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	o.PatientID = existing.PatientID
	if existing.Status != OrderPending {
		if o.Tests != nil && !sameCodes(normalizeCodes(o.Tests), existing.Tests) {
			return apperr.Conflict("tests can only be changed while the order is %s", OrderPending)
		}
		o.Tests = existing.Tests
		o.SampleID = existing.SampleID
	} else {
		if o.Tests == nil {
			o.Tests = existing.Tests
		}
		if err := s.checkTests(ctx, o, existing.Tests); err != nil {
			return err
		}
		if err := s.checkSample(ctx, o); err != nil {
			return err
		}
	}
	o.Notes = strings.TrimSpace(o.Notes)
	o.TestOrderID = existing.TestOrderID
	o.OrderedBy = existing.OrderedBy
	o.Status = existing.Status
	o.CreatedAt = existing.CreatedAt
	o.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.orders.Update(ctx, o); err != nil {
		return err
	}
	s.activity.Log(ctx, o.UpdatedBy, activitylog.EntityTestOrder, activitylog.ActionUpdate, o.TestOrderID, nil)
	return nil
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// UpdateOrderStatus moves an order manually. Completed is only reachable
// once every ordered test has an approved result.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*TestOrder, error) {
	var o *TestOrder
	var changes []change
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.orders.GetByID(ctx, id); err != nil {
			return err
		}
		if err := orderFlow.check(o.Status, status); err != nil {
			return err
		}
		if status == OrderCompleted {
			done, err := s.allApproved(ctx, o)
			if err != nil {
				return err
			}
			if !done {
				return apperr.Conflict("order %s still has tests without an approved result", o.TestOrderID)
			}
		}
		c, err := s.moveOrder(ctx, o, status)
		changes = append(changes, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes...)
	return o, nil
}

func (s *Service) moveOrder(ctx context.Context, o *TestOrder, to string) (change, error) {
	from := o.Status
	o.Status = to
	o.UpdatedBy = auth.UserIDFromContext(ctx)
	c := change{entity: activitylog.EntityTestOrder, action: activitylog.ActionStatusChange,
		entityID: o.TestOrderID, from: from, to: to, patient: o.PatientID}
	return c, s.orders.Update(ctx, o)
}

func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	if err := s.orders.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityTestOrder, activitylog.ActionDelete, o.TestOrderID, nil)
	return nil
}

// -- test results --

func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	return s.results.GetByID(ctx, id)
}

// SaveResults enters values for tests of one order. Each input updates the
// live result for its test or creates it. All inputs are saved or none.
func (s *Service) SaveResults(ctx context.Context, orderID uuid.UUID, inputs []ResultInput) ([]*TestResult, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one result is required")
	}
	var saved []*TestResult
	var changes []change
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == OrderCancelled || o.Status == OrderCompleted {
			return apperr.Conflict("order %s is %s", o.TestOrderID, o.Status)
		}
		codes := make([]string, 0, len(inputs))
		for i := range inputs {
			inputs[i].TestCode = strings.ToUpper(strings.TrimSpace(inputs[i].TestCode))
			if !o.Includes(inputs[i].TestCode) {
				return apperr.Validation("test %q is not part of order %s", inputs[i].TestCode, o.TestOrderID)
			}
			codes = append(codes, inputs[i].TestCode)
		}
		defs, err := s.tests.Definitions(ctx, codes)
		if err != nil {
			return err
		}
		for _, c := range codes {
			if defs[c] == nil {
				return apperr.Validation("test %q has no catalog definition", c)
			}
		}
		saved = saved[:0]
		for _, in := range inputs {
			r, c, err := s.saveOne(ctx, o, defs[in.TestCode], in)
			if err != nil {
				return err
			}
			if c != nil {
				changes = append(changes, *c)
			}
			saved = append(saved, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes...)
	return saved, nil
}

func (s *Service) saveOne(ctx context.Context, o *TestOrder, def *catalog.TestDefinition, in ResultInput) (*TestResult, *change, error) {
	actor := auth.UserIDFromContext(ctx)
	unit := strings.TrimSpace(in.Unit)
	if unit == "" && def != nil {
		unit = def.Unit
	}
	ref := strings.TrimSpace(in.ReferenceRange)
	if ref == "" && def != nil {
		ref = def.ReferenceRange
	}

	r, err := s.results.GetLive(ctx, o.ID, in.TestCode)
	if errors.Is(err, apperr.ErrNotFound) {
		r = &TestResult{
			TestOrderID:    o.ID,
			TestCode:       in.TestCode,
			ResultValue:    in.ResultValue,
			Unit:           unit,
			ReferenceRange: ref,
			Flag:           catalog.Flag(in.ResultValue, ref),
			Status:         ResultDraft,
			EnteredBy:      actor,
			UpdatedBy:      actor,
		}
		return r, nil, s.results.Create(ctx, r)
	}
	if err != nil {
		return nil, nil, err
	}
	if !editable(r.Status) {
		return nil, nil, apperr.Transition(r.Status, ResultDraft)
	}

	var c *change
	if r.Status == ResultReturned {
		c = &change{entity: activitylog.EntityTestResult, action: activitylog.ActionUpdate,
			entityID: r.ID.String(), from: r.Status, to: ResultDraft,
			details: map[string]interface{}{"test_code": r.TestCode}}
		r.Status = ResultDraft
	}
	r.ResultValue = in.ResultValue
	r.Unit = unit
	r.ReferenceRange = ref
	r.Flag = catalog.Flag(in.ResultValue, ref)
	r.EnteredBy = actor
	r.UpdatedBy = actor
	return r, c, s.results.Update(ctx, r)
}

// moveResult applies one workflow edge.
func (s *Service) moveResult(ctx context.Context, r *TestResult, to, action string) (change, error) {
	if err := resultFlow.check(r.Status, to); err != nil {
		return change{}, err
	}
	from := r.Status
	r.Status = to
	r.UpdatedBy = auth.UserIDFromContext(ctx)
	c := change{entity: activitylog.EntityTestResult, action: action, entityID: r.ID.String(),
		from: from, to: to, details: map[string]interface{}{"test_code": r.TestCode}}
	return c, s.results.Update(ctx, r)
}

// startOrder moves a Pending order to In Progress once work is submitted.
func (s *Service) startOrder(ctx context.Context, o *TestOrder) (*change, error) {
	switch o.Status {
	case OrderPending:
		c, err := s.moveOrder(ctx, o, OrderInProgress)
		return &c, err
	case OrderInProgress:
		return nil, nil
	default:
		return nil, apperr.Conflict("order %s is %s", o.TestOrderID, o.Status)
	}
}

// SubmitResult sends one Draft or Returned result for approval.
func (s *Service) SubmitResult(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	var r *TestResult
	var changes []change
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = s.results.GetByID(ctx, id); err != nil {
			return err
		}
		o, err := s.orders.GetByID(ctx, r.TestOrderID)
		if err != nil {
			return err
		}
		c, err := s.moveResult(ctx, r, ResultPendingApproval, ActionSubmit)
		if err != nil {
			return err
		}
		changes = append(changes, c)
		oc, err := s.startOrder(ctx, o)
		if oc != nil {
			changes = append(changes, *oc)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes...)
	return r, nil
}

// SubmitOrder sends every Draft result of an order for approval and puts
// the order In Progress. It returns the submitted results.
func (s *Service) SubmitOrder(ctx context.Context, orderID uuid.UUID) ([]*TestResult, error) {
	var submitted []*TestResult
	var changes []change
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		results, err := s.results.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		submitted, changes = submitted[:0], changes[:0]
		for _, r := range results {
			if r.Status != ResultDraft {
				continue
			}
			c, err := s.moveResult(ctx, r, ResultPendingApproval, ActionSubmit)
			if err != nil {
				return err
			}
			changes = append(changes, c)
			submitted = append(submitted, r)
		}
		if len(submitted) == 0 {
			return apperr.Validation("order %s has no draft results to submit", o.TestOrderID)
		}
		oc, err := s.startOrder(ctx, o)
		if oc != nil {
			changes = append(changes, *oc)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes...)
	return submitted, nil
}

// allApproved reports whether every ordered test has an approved result.
func (s *Service) allApproved(ctx context.Context, o *TestOrder) (bool, error) {
	results, err := s.results.ListByOrder(ctx, o.ID)
	if err != nil {
		return false, err
	}
	approved := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Status == ResultApproved {
			approved[r.TestCode] = true
		}
	}
	for _, code := range o.Tests {
		if !approved[code] {
			return false, nil
		}
	}
	return true, nil
}

// review applies a doctor's decision and completes the order when it was
// the last outstanding test.
func (s *Service) review(ctx context.Context, id uuid.UUID, to, action string, apply func(r *TestResult)) (*TestResult, error) {
	var r *TestResult
	var changes []change
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = s.results.GetByID(ctx, id); err != nil {
			return err
		}
		if !resultFlow.allows(r.Status, to) {
			return apperr.Transition(r.Status, to)
		}
		apply(r)
		c, err := s.moveResult(ctx, r, to, action)
		if err != nil {
			return err
		}
		changes = append(changes[:0], c)
		if to != ResultApproved {
			return nil
		}
		o, err := s.orders.GetByID(ctx, r.TestOrderID)
		if err != nil {
			return err
		}
		done, err := s.allApproved(ctx, o)
		if err != nil || !done || o.Status != OrderInProgress {
			return err
		}
		oc, err := s.moveOrder(ctx, o, OrderCompleted)
		changes = append(changes, oc)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, changes...)
	return r, nil
}

func (s *Service) ApproveResult(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	return s.review(ctx, id, ResultApproved, ActionApprove, func(r *TestResult) {
		by := auth.UserIDFromContext(ctx)
		at := s.now().UTC()
		r.ApprovedBy, r.ApprovedAt = &by, &at
	})
}

func (s *Service) RejectResult(ctx context.Context, id uuid.UUID, reason string) (*TestResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	return s.review(ctx, id, ResultRejected, ActionReject, func(r *TestResult) {
		r.RejectionReason = &reason
	})
}

func (s *Service) ReturnResult(ctx context.Context, id uuid.UUID, reason string) (*TestResult, error) {
	reason = strings.TrimSpace(reason)
	return s.review(ctx, id, ResultReturned, ActionReturn, func(r *TestResult) {
		if reason == "" {
			r.ReturnReason = nil
			return
		}
		r.ReturnReason = &reason
	})
}

func (s *Service) ResultsByOrder(ctx context.Context, orderID uuid.UUID) ([]*TestResult, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.results.ListByOrder(ctx, orderID)
}

// PendingApprovals lists results waiting for review, oldest first.
func (s *Service) PendingApprovals(ctx context.Context, limit, offset int) ([]*TestResult, int, error) {
	return s.results.ListByStatus(ctx, ResultPendingApproval, true, limit, offset)
}

func (s *Service) ApprovedResults(ctx context.Context, limit, offset int) ([]*TestResult, int, error) {
	return s.results.ListByStatus(ctx, ResultApproved, false, limit, offset)
}

// ResultsByPatient lists a patient's results. Patient accounts only see
// approved results of their own record.
func (s *Service) ResultsByPatient(ctx context.Context, patientID uuid.UUID) ([]*TestResult, error) {
	status := ""
	if auth.RoleFromContext(ctx) == auth.RolePatient {
		if auth.PatientRefFromContext(ctx) != patientID.String() {
			return nil, apperr.Forbidden("results of another patient are not available")
		}
		status = ResultApproved
	}
	return s.results.ListByPatient(ctx, patientID, status)
}
