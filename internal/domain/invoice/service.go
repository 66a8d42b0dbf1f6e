package invoice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/lab"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/idgen"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type OrderLookup interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*lab.TestOrder, error)
}

// PriceList supplies catalog prices for items that name a test code.
// Definitions covers tests withdrawn after they were ordered.
type PriceList interface {
	Resolve(ctx context.Context, codes []string) (map[string]*catalog.TestDefinition, error)
	Definitions(ctx context.Context, codes []string) (map[string]*catalog.TestDefinition, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	orders   OrderLookup
	prices   PriceList
	ids      *idgen.Generator
	activity activitylog.Recorder
	now      func() time.Time
}

func NewService(repo Repository, patients PatientLookup, orders OrderLookup, prices PriceList,
	ids *idgen.Generator, activity activitylog.Recorder) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		orders:   orders,
		prices:   prices,
		ids:      ids,
		activity: activity,
		now:      time.Now,
	}
}

// itemsFromOrder bills each ordered test once at its catalog price.
func (s *Service) itemsFromOrder(ctx context.Context, o *lab.TestOrder) ([]Item, error) {
	defs, err := s.prices.Definitions(ctx, o.Tests)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(o.Tests))
	for _, code := range o.Tests {
		d := defs[code]
		if d == nil {
			return nil, apperr.Validation("test %q has no catalog definition", code)
		}
		items = append(items, Item{Description: d.Name, TestCode: code, Price: d.Price, Quantity: 1})
	}
	return items, nil
}

// fillItems trims text, upper-cases codes and copies catalog names and
// prices into items that left them blank.
func (s *Service) fillItems(ctx context.Context, items []Item) error {
	var codes []string
	for i := range items {
		items[i].Description = strings.TrimSpace(items[i].Description)
		items[i].TestCode = strings.ToUpper(strings.TrimSpace(items[i].TestCode))
		if items[i].TestCode != "" && (items[i].Price == 0 || items[i].Description == "") {
			codes = append(codes, items[i].TestCode)
		}
	}
	if len(codes) == 0 {
		return nil
	}
	defs, err := s.prices.Resolve(ctx, codes)
	if err != nil {
		return err
	}
	for i := range items {
		d := defs[items[i].TestCode]
		if d == nil {
			continue
		}
		if items[i].Price == 0 {
			items[i].Price = d.Price
		}
		if items[i].Description == "" {
			items[i].Description = d.Name
		}
	}
	return nil
}

func validateAmounts(inv *Invoice) error {
	if len(inv.Items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for i, it := range inv.Items {
		switch {
		case it.Description == "":
			return apperr.Validation("item %d: description is required", i+1)
		case it.Price < 0:
			return apperr.Validation("item %d: price must not be negative", i+1)
		case it.Quantity <= 0:
			return apperr.Validation("item %d: quantity must be greater than zero", i+1)
		}
	}
	if inv.Tax < 0 {
		return apperr.Validation("tax must not be negative")
	}
	if inv.Discount < 0 {
		return apperr.Validation("discount must not be negative")
	}
	if inv.AmountPaid < 0 {
		return apperr.Validation("amount_paid must not be negative")
	}
	inv.Subtotal, inv.Total = Totals(inv.Items, inv.Tax, inv.Discount)
	if inv.Total < 0 {
		return apperr.Validation("discount exceeds the invoice amount")
	}
	return nil
}

// derive refreshes the status from the stored amounts unless cancelled.
func (s *Service) derive(inv *Invoice) {
	if inv.Status == StatusCancelled {
		return
	}
	inv.Status = DeriveStatus(inv.Total, inv.AmountPaid, inv.DueDate, s.now())
}

func (s *Service) checkOrder(ctx context.Context, inv *Invoice) (*lab.TestOrder, error) {
	if inv.TestOrderID == nil {
		return nil, nil
	}
	o, err := s.orders.GetOrder(ctx, *inv.TestOrderID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Validation("test order %s does not exist", *inv.TestOrderID)
	}
	if err != nil {
		return nil, err
	}
	if o.PatientID != inv.PatientID {
		return nil, apperr.Validation("test order %s belongs to another patient", o.TestOrderID)
	}
	return o, nil
}

// Create bills a patient. With a linked order and no items, every ordered
// test is billed at its catalog price.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if _, err := s.patients.Get(ctx, inv.PatientID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("patient %s does not exist", inv.PatientID)
		}
		return err
	}
	o, err := s.checkOrder(ctx, inv)
	if err != nil {
		return err
	}
	if len(inv.Items) == 0 && o != nil {
		if inv.Items, err = s.itemsFromOrder(ctx, o); err != nil {
			return err
		}
	}
	if err := s.fillItems(ctx, inv.Items); err != nil {
		return err
	}
	if err := validateAmounts(inv); err != nil {
		return err
	}
	if inv.AmountPaid > inv.Total {
		return apperr.Validation("amount_paid exceeds the invoice total")
	}
	inv.Notes = strings.TrimSpace(inv.Notes)
	inv.Status = ""
	s.derive(inv)
	actor := auth.UserIDFromContext(ctx)
	inv.CreatedBy, inv.UpdatedBy = actor, actor

	err = idgen.WithRetry(ctx, s.ids, idgen.PrefixInvoice, idgen.DefaultAttempts, func(id string) error {
		inv.InvoiceID = id
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return err
	}
	decorate(inv)
	s.activity.Log(ctx, actor, activitylog.EntityInvoice, activitylog.ActionCreate, inv.InvoiceID,
		map[string]interface{}{"total": inv.Total, "status": inv.Status})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decorate(inv), nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	invs, total, err := s.repo.List(ctx, f, limit, offset)
	for _, inv := range invs {
		decorate(inv)
	}
	return invs, total, err
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.List(ctx, Filter{PatientID: &patientID}, limit, offset)
}

// Update replaces items, adjustments, due date and notes of an open invoice
// and recalculates totals.
func (s *Service) Update(ctx context.Context, inv *Invoice) error {
	existing, err := s.repo.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if existing.Status == StatusCancelled {
		return apperr.Conflict("invoice %s is cancelled", existing.InvoiceID)
	}
	inv.PatientID = existing.PatientID
	if inv.TestOrderID == nil {
		inv.TestOrderID = existing.TestOrderID
	}
	if inv.DueDate == nil {
		inv.DueDate = existing.DueDate
	}
	if _, err := s.checkOrder(ctx, inv); err != nil {
		return err
	}
	if inv.Items == nil {
		inv.Items = existing.Items
	}
	if err := s.fillItems(ctx, inv.Items); err != nil {
		return err
	}
	inv.AmountPaid = existing.AmountPaid
	if err := validateAmounts(inv); err != nil {
		return err
	}
	if inv.AmountPaid > inv.Total {
		return apperr.Conflict("invoice total %.2f is below the amount already paid", inv.Total)
	}
	inv.InvoiceID = existing.InvoiceID
	inv.CreatedBy = existing.CreatedBy
	inv.CreatedAt = existing.CreatedAt
	inv.Notes = strings.TrimSpace(inv.Notes)
	inv.Status = ""
	s.derive(inv)
	inv.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, inv); err != nil {
		return err
	}
	decorate(inv)
	s.activity.Log(ctx, inv.UpdatedBy, activitylog.EntityInvoice, activitylog.ActionUpdate, inv.InvoiceID,
		map[string]interface{}{"total": inv.Total})
	return nil
}

// RecordPayment adds amount to what has been paid.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, amount float64) (*Invoice, error) {
	if amount <= 0 {
		return nil, apperr.Validation("payment amount must be greater than zero")
	}
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusCancelled {
		return nil, apperr.Conflict("invoice %s is cancelled", inv.InvoiceID)
	}
	amount = round2(amount)
	if amount > inv.Outstanding() {
		return nil, apperr.Validation("payment of %.2f exceeds the outstanding %.2f", amount, inv.Outstanding())
	}
	from := inv.Status
	inv.AmountPaid = round2(inv.AmountPaid + amount)
	s.derive(inv)
	inv.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.activity.Log(ctx, inv.UpdatedBy, activitylog.EntityInvoice, "payment", inv.InvoiceID,
		map[string]interface{}{"amount": amount, "from": from, "to": inv.Status})
	return decorate(inv), nil
}

// UpdateStatus cancels an invoice, or re-derives its status when asked for
// the status its amounts already imply. Other manual statuses are refused.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Invoice, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status %q", status)
	}
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := inv.Status
	if from == StatusCancelled {
		return nil, apperr.Transition(from, status)
	}
	if status == StatusCancelled {
		inv.Status = StatusCancelled
	} else {
		s.derive(inv)
		if inv.Status != status {
			return nil, apperr.Validation("status %s does not match the payments; only %s can be set manually",
				status, StatusCancelled)
		}
	}
	inv.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.activity.Log(ctx, inv.UpdatedBy, activitylog.EntityInvoice, activitylog.ActionStatusChange, inv.InvoiceID,
		map[string]interface{}{"from": from, "to": inv.Status})
	return decorate(inv), nil
}

// Delete hides the invoice and cancels it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(ctx)
	if err := s.repo.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityInvoice, activitylog.ActionDelete, inv.InvoiceID, nil)
	return nil
}

// RefreshOverdue marks open invoices whose due date has passed. It returns
// how many changed.
func (s *Service) RefreshOverdue(ctx context.Context) (int, error) {
	invs, err := s.repo.ListPastDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, inv := range invs {
		from := inv.Status
		s.derive(inv)
		if inv.Status == from {
			continue
		}
		inv.UpdatedBy = "system"
		if err := s.repo.Update(ctx, inv); err != nil {
			return n, err
		}
		s.activity.Log(ctx, "system", activitylog.EntityInvoice, activitylog.ActionStatusChange, inv.InvoiceID,
			map[string]interface{}{"from": from, "to": inv.Status})
		n++
	}
	return n, nil
}
