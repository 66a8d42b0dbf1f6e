package lab

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/idgen"
)

func TestCreateSample_Success(t *testing.T) {
	f := newFixture()
	s := &Sample{PatientID: f.patient, SampleType: "Blood", Notes: "  fasting  "}
	if err := f.svc.CreateSample(techCtx(), s); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if !idgen.Valid(s.SampleID) || s.SampleID[:3] != idgen.PrefixSample {
		t.Errorf("unexpected sample id %q", s.SampleID)
	}
	if s.Status != SamplePending || s.CollectedBy != "tech-1" || s.Notes != "fasting" {
		t.Errorf("unexpected sample %+v", s)
	}
	if !s.CollectionDate.Equal(testNow) {
		t.Errorf("expected collection date to default to now, got %v", s.CollectionDate)
	}
}

func TestCreateSample_Invalid(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		s    *Sample
	}{
		{"bad type", &Sample{PatientID: f.patient, SampleType: "Saliva"}},
		{"no patient", &Sample{SampleType: "Blood"}},
		{"unknown patient", &Sample{PatientID: uuid.New(), SampleType: "Urine"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.CreateSample(techCtx(), tt.s)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateSampleStatus_Transitions(t *testing.T) {
	tests := []struct {
		path []string
		ok   bool
	}{
		{[]string{SampleCollected, SampleProcessed}, true},
		{[]string{SampleRejected}, true},
		{[]string{SampleCollected, SampleRejected}, true},
		{[]string{SampleProcessed}, false},
		{[]string{SampleRejected, SampleCollected}, false},
		{[]string{SampleCollected, SampleProcessed, SamplePending}, false},
	}
	for _, tt := range tests {
		f := newFixture()
		s := &Sample{PatientID: f.patient, SampleType: "Blood"}
		if err := f.svc.CreateSample(techCtx(), s); err != nil {
			t.Fatal(err)
		}
		var err error
		for _, to := range tt.path {
			if _, err = f.svc.UpdateSampleStatus(techCtx(), s.ID, to); err != nil {
				break
			}
		}
		if tt.ok && err != nil {
			t.Errorf("%v: unexpected error %v", tt.path, err)
		}
		if !tt.ok && !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("%v: expected invalid transition, got %v", tt.path, err)
		}
	}
}

func TestDeleteSample_HidesIt(t *testing.T) {
	f := newFixture()
	s := &Sample{PatientID: f.patient, SampleType: "Blood"}
	f.svc.CreateSample(techCtx(), s)
	if err := f.svc.DeleteSample(techCtx(), s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetSample(techCtx(), s.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	list, total, _ := f.svc.ListSamples(techCtx(), SampleFilter{}, 20, 0)
	if total != 0 || len(list) != 0 {
		t.Errorf("deleted sample listed")
	}
	if len(f.samples.store) != 1 {
		t.Errorf("soft delete must keep the row")
	}
}

func TestCreateOrder_NormalizesTests(t *testing.T) {
	f := newFixture()
	o := f.order(" fbs", "HB", "FBS")
	if len(o.Tests) != 2 || o.Tests[0] != "FBS" || o.Tests[1] != "HB" {
		t.Errorf("unexpected tests %v", o.Tests)
	}
	if o.Status != OrderPending || o.OrderedBy != "tech-1" || !idgen.Valid(o.TestOrderID) {
		t.Errorf("unexpected order %+v", o)
	}
}

func TestCreateOrder_Invalid(t *testing.T) {
	f := newFixture()
	foreign := &Sample{PatientID: f.other, SampleType: "Blood"}
	f.svc.CreateSample(techCtx(), foreign)

	tests := []struct {
		name string
		o    *TestOrder
	}{
		{"no tests", &TestOrder{PatientID: f.patient}},
		{"unknown code", &TestOrder{PatientID: f.patient, Tests: []string{"XYZ"}}},
		{"unknown patient", &TestOrder{PatientID: uuid.New(), Tests: []string{"FBS"}}},
		{"foreign sample", &TestOrder{PatientID: f.patient, Tests: []string{"FBS"}, SampleID: &foreign.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.CreateOrder(techCtx(), tt.o); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateOrder_TestsFrozenAfterStart(t *testing.T) {
	f := newFixture()
	o := f.order("FBS")
	if _, err := f.svc.UpdateOrderStatus(techCtx(), o.ID, OrderInProgress); err != nil {
		t.Fatal(err)
	}
	upd := &TestOrder{ID: o.ID, Tests: []string{"FBS", "HB"}}
	if err := f.svc.UpdateOrder(techCtx(), upd); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	upd = &TestOrder{ID: o.ID, Notes: "urgent"}
	if err := f.svc.UpdateOrder(techCtx(), upd); err != nil {
		t.Fatalf("notes update: %v", err)
	}
	if upd.Notes != "urgent" || len(upd.Tests) != 1 || upd.Status != OrderInProgress {
		t.Errorf("unexpected order %+v", upd)
	}
}

func TestSaveResults_DefaultsAndFlags(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB", "TSH")
	saved, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{
		{TestCode: "fbs", ResultValue: 126},
		{TestCode: "HB", ResultValue: 13.5},
		{TestCode: "TSH", ResultValue: 2.1},
	})
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	want := map[string]string{"FBS": "H", "HB": "N", "TSH": ""}
	for _, r := range saved {
		if r.Flag != want[r.TestCode] {
			t.Errorf("%s: flag %q, want %q", r.TestCode, r.Flag, want[r.TestCode])
		}
		if r.Status != ResultDraft || r.EnteredBy != "tech-1" {
			t.Errorf("%s: unexpected result %+v", r.TestCode, r)
		}
	}
	if saved[0].Unit != "mg/dL" || saved[0].ReferenceRange != "70-100" {
		t.Errorf("expected catalog defaults, got %q %q", saved[0].Unit, saved[0].ReferenceRange)
	}
}

func TestSaveResults_UpsertsLiveRow(t *testing.T) {
	f := newFixture()
	o := f.order("FBS")
	first, _ := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 50}})
	second, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 85, ReferenceRange: "60-110"}})
	if err != nil {
		t.Fatal(err)
	}
	if first[0].ID != second[0].ID {
		t.Error("expected the live result to be updated in place")
	}
	if len(f.results.store) != 1 {
		t.Errorf("expected one row, got %d", len(f.results.store))
	}
	if second[0].Flag != "N" || second[0].ReferenceRange != "60-110" {
		t.Errorf("unexpected result %+v", second[0])
	}
}

func TestWithdrawnTest_OpenOrderStillWorkable(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB")
	f.tests["FBS"].Active = false

	upd := &TestOrder{ID: o.ID, Notes: "fasting confirmed"}
	if err := f.svc.UpdateOrder(techCtx(), upd); err != nil {
		t.Fatalf("notes update on order with withdrawn test: %v", err)
	}
	upd = &TestOrder{ID: o.ID, Tests: []string{"FBS", "HB", "TSH"}}
	if err := f.svc.UpdateOrder(techCtx(), upd); err != nil {
		t.Fatalf("adding an active test: %v", err)
	}

	saved, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 126}})
	if err != nil {
		t.Fatalf("SaveResults for withdrawn test: %v", err)
	}
	if saved[0].Unit != "mg/dL" || saved[0].Flag != "H" {
		t.Errorf("expected catalog defaults from the withdrawn definition, got %+v", saved[0])
	}

	err = f.svc.CreateOrder(techCtx(), &TestOrder{PatientID: f.patient, Tests: []string{"FBS"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected new orders to refuse the withdrawn test, got %v", err)
	}
	other := f.order("HB")
	err = f.svc.UpdateOrder(techCtx(), &TestOrder{ID: other.ID, Tests: []string{"HB", "FBS"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected adding the withdrawn test to be refused, got %v", err)
	}
}

func TestSaveResults_Rejected(t *testing.T) {
	f := newFixture()
	o := f.order("FBS")
	if _, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "HB", ResultValue: 1}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for test outside order, got %v", err)
	}
	if _, err := f.svc.SaveResults(techCtx(), o.ID, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty input, got %v", err)
	}

	f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}})
	if _, err := f.svc.SubmitOrder(techCtx(), o.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 91}})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected pending result to be locked, got %v", err)
	}
}

func TestSubmitOrder(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB")
	if _, err := f.svc.SubmitOrder(techCtx(), o.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error with no drafts, got %v", err)
	}
	f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}, {TestCode: "HB", ResultValue: 14}})

	submitted, err := f.svc.SubmitOrder(techCtx(), o.ID)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if len(submitted) != 2 {
		t.Fatalf("expected 2 submitted, got %d", len(submitted))
	}
	for _, r := range submitted {
		if r.Status != ResultPendingApproval {
			t.Errorf("%s: status %q", r.TestCode, r.Status)
		}
	}
	got, _ := f.svc.GetOrder(techCtx(), o.ID)
	if got.Status != OrderInProgress {
		t.Errorf("expected order In Progress, got %q", got.Status)
	}
	if acts := f.activity.actions(activitylog.EntityTestResult); len(acts) != 2 || acts[0] != ActionSubmit {
		t.Errorf("unexpected result log %v", acts)
	}
}

func TestApprove_CompletesOrder(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB")
	f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}, {TestCode: "HB", ResultValue: 14}})
	submitted, _ := f.svc.SubmitOrder(techCtx(), o.ID)

	r, err := f.svc.ApproveResult(doctorCtx(), submitted[0].ID)
	if err != nil {
		t.Fatalf("ApproveResult: %v", err)
	}
	if r.Status != ResultApproved || r.ApprovedBy == nil || *r.ApprovedBy != "doc-1" || r.ApprovedAt == nil {
		t.Errorf("unexpected approval stamp %+v", r)
	}
	if got, _ := f.svc.GetOrder(techCtx(), o.ID); got.Status != OrderInProgress {
		t.Errorf("order completed early: %q", got.Status)
	}

	f.svc.ApproveResult(doctorCtx(), submitted[1].ID)
	if got, _ := f.svc.GetOrder(techCtx(), o.ID); got.Status != OrderCompleted {
		t.Errorf("expected Completed, got %q", got.Status)
	}
}

func TestReviewWorkflow(t *testing.T) {
	f := newFixture()
	o := f.order("FBS")
	saved, _ := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}})
	id := saved[0].ID

	if _, err := f.svc.ApproveResult(doctorCtx(), id); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("approving a draft: expected invalid transition, got %v", err)
	}
	f.svc.SubmitResult(techCtx(), id)

	r, err := f.svc.ReturnResult(doctorCtx(), id, "recheck haemolysis")
	if err != nil || r.Status != ResultReturned || r.ReturnReason == nil {
		t.Fatalf("ReturnResult: %+v %v", r, err)
	}

	// Editing a returned result puts it back to Draft.
	edited, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 92}})
	if err != nil || edited[0].Status != ResultDraft {
		t.Fatalf("edit returned result: %+v %v", edited, err)
	}
	if _, err := f.svc.SubmitResult(techCtx(), id); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.RejectResult(doctorCtx(), id, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected reason to be required, got %v", err)
	}
	r, err = f.svc.RejectResult(doctorCtx(), id, "clotted sample")
	if err != nil || r.Status != ResultRejected || *r.RejectionReason != "clotted sample" {
		t.Fatalf("RejectResult: %+v %v", r, err)
	}

	for _, fn := range []func() error{
		func() error { _, err := f.svc.ApproveResult(doctorCtx(), id); return err },
		func() error { _, err := f.svc.SubmitResult(techCtx(), id); return err },
		func() error { _, err := f.svc.ReturnResult(doctorCtx(), id, ""); return err },
	} {
		if err := fn(); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("rejected is terminal, got %v", err)
		}
	}

	acts := f.activity.actions(activitylog.EntityTestResult)
	want := []string{ActionSubmit, ActionReturn, activitylog.ActionUpdate, ActionSubmit, ActionReject}
	if len(acts) != len(want) {
		t.Fatalf("logged %v, want %v", acts, want)
	}
	for i := range want {
		if acts[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, acts[i], want[i])
		}
	}
}

func TestResultFlow_Edges(t *testing.T) {
	all := []string{ResultDraft, ResultPendingApproval, ResultApproved, ResultRejected, ResultReturned}
	allowed := map[[2]string]bool{
		{ResultDraft, ResultPendingApproval}:    true,
		{ResultReturned, ResultPendingApproval}: true,
		{ResultReturned, ResultDraft}:           true,
		{ResultPendingApproval, ResultApproved}: true,
		{ResultPendingApproval, ResultRejected}: true,
		{ResultPendingApproval, ResultReturned}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransitionResult(from, to); got != allowed[[2]string{from, to}] {
				t.Errorf("%s -> %s: got %v", from, to, got)
			}
		}
	}
}

func TestSampleAndOrderFlow(t *testing.T) {
	cases := []struct {
		name     string
		check    func(from, to string) bool
		from, to string
		want     bool
	}{
		{"collect", CanTransitionSample, SamplePending, SampleCollected, true},
		{"reject pending", CanTransitionSample, SamplePending, SampleRejected, true},
		{"process collected", CanTransitionSample, SampleCollected, SampleProcessed, true},
		{"skip collection", CanTransitionSample, SamplePending, SampleProcessed, false},
		{"reopen processed", CanTransitionSample, SampleProcessed, SamplePending, false},
		{"start order", CanTransitionOrder, OrderPending, OrderInProgress, true},
		{"complete order", CanTransitionOrder, OrderInProgress, OrderCompleted, true},
		{"cancel in progress", CanTransitionOrder, OrderInProgress, OrderCancelled, true},
		{"complete pending", CanTransitionOrder, OrderPending, OrderCompleted, false},
		{"revive cancelled", CanTransitionOrder, OrderCancelled, OrderPending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.check(tc.from, tc.to); got != tc.want {
				t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestPendingApprovals_OldestFirst(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB")
	saved, _ := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}, {TestCode: "HB", ResultValue: 14}})
	f.svc.SubmitResult(techCtx(), saved[1].ID)
	f.svc.SubmitResult(techCtx(), saved[0].ID)

	pending, total, err := f.svc.PendingApprovals(doctorCtx(), 20, 0)
	if err != nil || total != 2 {
		t.Fatalf("PendingApprovals: %d %v", total, err)
	}
	if pending[0].TestCode != "HB" {
		t.Errorf("expected HB first, got %s", pending[0].TestCode)
	}
}

func TestResultsByPatient_PatientSeesOwnApprovedOnly(t *testing.T) {
	f := newFixture()
	o := f.order("FBS", "HB")
	saved, _ := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 90}, {TestCode: "HB", ResultValue: 14}})
	f.svc.SubmitOrder(techCtx(), o.ID)
	f.svc.ApproveResult(doctorCtx(), saved[0].ID)

	staff, _ := f.svc.ResultsByPatient(techCtx(), f.patient)
	if len(staff) != 2 {
		t.Errorf("staff should see every result, got %d", len(staff))
	}

	own := auth.WithIdentity(techCtx(), auth.Identity{UserID: "u-9", Role: auth.RolePatient, PatientRef: f.patient.String()})
	mine, err := f.svc.ResultsByPatient(own, f.patient)
	if err != nil || len(mine) != 1 || mine[0].Status != ResultApproved {
		t.Errorf("patient view: %+v %v", mine, err)
	}
	if _, err := f.svc.ResultsByPatient(own, f.other); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for another patient, got %v", err)
	}
}

func TestUpdateOrderStatus_CompletedNeedsApprovals(t *testing.T) {
	f := newFixture()
	o := f.order("FBS")
	f.svc.UpdateOrderStatus(techCtx(), o.ID, OrderInProgress)
	if _, err := f.svc.UpdateOrderStatus(techCtx(), o.ID, OrderCompleted); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := f.svc.UpdateOrderStatus(techCtx(), o.ID, OrderCancelled); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SaveResults(techCtx(), o.ID, []ResultInput{{TestCode: "FBS", ResultValue: 1}}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected cancelled order to refuse results, got %v", err)
	}
}
