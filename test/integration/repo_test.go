package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/dashboard"
	"github.com/medilab/lims/internal/domain/lab"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/domain/report"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/internal/platform/idgen"
	"github.com/medilab/lims/migrations"
)

func TestMigrations_AllApplied(t *testing.T) {
	ctx := context.Background()
	m := db.NewMigrator(pool, migrations.FS)

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no pending migrations, applied %d", n)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %03d_%s not applied", s.Version, s.Name)
		}
	}
}

func TestPatientRepo(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(pool)

	t.Run("RoundTrip", func(t *testing.T) {
		p := createTestPatient(t, ctx, "Nimali Perera")
		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.PatientID != p.PatientID || got.FullName != "Nimali Perera" {
			t.Errorf("unexpected patient %+v", got)
		}
		if got.DateOfBirth.String() != "1990-03-15" {
			t.Errorf("expected date of birth 1990-03-15, got %s", got.DateOfBirth)
		}

		byNIC, err := repo.GetByNIC(ctx, p.NIC)
		if err != nil {
			t.Fatalf("GetByNIC: %v", err)
		}
		if byNIC.ID != p.ID {
			t.Errorf("GetByNIC returned %s, want %s", byNIC.ID, p.ID)
		}
	})

	t.Run("DuplicatePatientIDIsCollision", func(t *testing.T) {
		p := createTestPatient(t, ctx, "First Holder")
		dup := *p
		dup.NIC = "D" + uniqueSuffix()
		err := repo.Create(ctx, &dup)
		if !errors.Is(err, idgen.ErrCollision) {
			t.Fatalf("expected ErrCollision, got %v", err)
		}
	})

	t.Run("DuplicateLiveNICIsConflict", func(t *testing.T) {
		p := createTestPatient(t, ctx, "NIC Holder")
		dup := *p
		dup.PatientID = "PAT-" + uniqueSuffix()
		err := repo.Create(ctx, &dup)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("SoftDeleteHidesAndFreesNIC", func(t *testing.T) {
		p := createTestPatient(t, ctx, "Soon Gone")
		if err := repo.SoftDelete(ctx, p.ID, "integration"); err != nil {
			t.Fatalf("SoftDelete: %v", err)
		}
		if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}

		again := *p
		again.PatientID = "PAT-" + uniqueSuffix()
		if err := repo.Create(ctx, &again); err != nil {
			t.Fatalf("re-register NIC after delete: %v", err)
		}
	})

	t.Run("SearchByName", func(t *testing.T) {
		marker := "Searchable " + uniqueSuffix()
		createTestPatient(t, ctx, marker)
		found, total, err := repo.Search(ctx, patient.SearchParams{Name: marker[:14]}, 10, 0)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total < 1 || len(found) < 1 {
			t.Fatalf("expected a match for %q, got total=%d", marker, total)
		}
	})
}

func TestLabRepos(t *testing.T) {
	ctx := context.Background()
	orders := lab.NewOrderRepo(pool)
	results := lab.NewResultRepo(pool)

	p := createTestPatient(t, ctx, "Kamal Silva")
	o := createTestOrder(t, ctx, p.ID, "FBS", "HBA1C")

	t.Run("OrderRoundTrip", func(t *testing.T) {
		got, err := orders.GetByID(ctx, o.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if !got.Includes("FBS") || !got.Includes("HBA1C") || got.Includes("TSH") {
			t.Errorf("unexpected tests %v", got.Tests)
		}
		if got.Status != lab.OrderPending {
			t.Errorf("expected %q, got %q", lab.OrderPending, got.Status)
		}
	})

	t.Run("OneLiveResultPerTest", func(t *testing.T) {
		r := &lab.TestResult{TestOrderID: o.ID, TestCode: "FBS", ResultValue: 98, Unit: "mg/dL",
			Status: lab.ResultDraft, EnteredBy: "integration"}
		if err := results.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		dup := &lab.TestResult{TestOrderID: o.ID, TestCode: "FBS", ResultValue: 99,
			Status: lab.ResultDraft, EnteredBy: "integration"}
		if err := results.Create(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		live, err := results.GetLive(ctx, o.ID, "FBS")
		if err != nil {
			t.Fatalf("GetLive: %v", err)
		}
		if live.ID != r.ID {
			t.Errorf("GetLive returned %s, want %s", live.ID, r.ID)
		}

		if err := results.SoftDelete(ctx, r.ID, "integration"); err != nil {
			t.Fatalf("SoftDelete: %v", err)
		}
		if err := results.Create(ctx, dup); err != nil {
			t.Fatalf("re-enter after delete: %v", err)
		}
	})

	t.Run("ListByPatientAndStatus", func(t *testing.T) {
		r := &lab.TestResult{TestOrderID: o.ID, TestCode: "HBA1C", ResultValue: 5.4, Unit: "%",
			Status: lab.ResultApproved, EnteredBy: "integration"}
		if err := results.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		approved, err := results.ListByPatient(ctx, p.ID, lab.ResultApproved)
		if err != nil {
			t.Fatalf("ListByPatient: %v", err)
		}
		if len(approved) != 1 || approved[0].TestCode != "HBA1C" {
			t.Fatalf("expected only the approved HBA1C result, got %d rows", len(approved))
		}

		all, err := results.ListByOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("ListByOrder: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 live results on the order, got %d", len(all))
		}
	})
}

func TestTransactor_RollsBack(t *testing.T) {
	ctx := context.Background()
	p := createTestPatient(t, ctx, "Tx Patient")
	orders := lab.NewOrderRepo(pool)
	boom := errors.New("boom")

	var created uuid.UUID
	err := db.PoolTransactor{Pool: pool}.WithTx(ctx, func(ctx context.Context) error {
		o := &lab.TestOrder{TestOrderID: "ORD-" + uniqueSuffix(), PatientID: p.ID, Tests: []string{"TSH"},
			OrderedBy: "integration", Status: lab.OrderPending}
		if err := orders.Create(ctx, o); err != nil {
			return err
		}
		created = o.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := orders.GetByID(ctx, created); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected rolled-back order to be missing, got %v", err)
	}
}

func TestReportRepo(t *testing.T) {
	ctx := context.Background()
	repo := report.NewRepo(pool)
	p := createTestPatient(t, ctx, "Report Patient")
	o := createTestOrder(t, ctx, p.ID, "TSH")

	rep := &report.Report{
		ReportID:    "RPT-" + uniqueSuffix(),
		PatientID:   p.ID,
		TestOrderID: &o.ID,
		ReportType:  report.DefaultType,
		FilePath:    "reports/integration.json",
		ContentType: report.ContentTypeJSON,
		GeneratedBy: "integration",
	}
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, total, err := repo.List(ctx, &p.ID, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(mine) != 1 || mine[0].ReportID != rep.ReportID {
		t.Fatalf("expected the one report for the patient, got total=%d", total)
	}
	if mine[0].TestOrderID == nil || *mine[0].TestOrderID != o.ID {
		t.Errorf("expected order link %s, got %v", o.ID, mine[0].TestOrderID)
	}

	if err := repo.SoftDelete(ctx, rep.ID, "integration"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := repo.GetByID(ctx, rep.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboardCount(t *testing.T) {
	ctx := context.Background()
	repo := dashboard.NewRepo(pool)

	before, err := repo.Count(ctx, dashboard.TableOrders, lab.OrderPending, lab.OrderInProgress)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	p := createTestPatient(t, ctx, "Counted Patient")
	createTestOrder(t, ctx, p.ID, "FBC")
	createTestOrder(t, ctx, p.ID, "UFR")

	after, err := repo.Count(ctx, dashboard.TableOrders, lab.OrderPending, lab.OrderInProgress)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if after-before != 2 {
		t.Errorf("expected 2 more open orders, got %d", after-before)
	}

	if _, err := repo.Count(ctx, "pg_user"); err == nil {
		t.Error("expected unknown table to be refused")
	}
}
