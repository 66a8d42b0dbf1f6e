package inventory

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/db"
)

type Service struct {
	repo     Repository
	tx       db.Transactor
	activity activitylog.Recorder
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, activity activitylog.Recorder) *Service {
	return &Service{repo: repo, tx: tx, activity: activity, now: time.Now}
}

func normalize(it *Item) {
	it.ItemName = strings.TrimSpace(it.ItemName)
	it.Unit = strings.TrimSpace(it.Unit)
	it.Supplier = strings.TrimSpace(it.Supplier)
}

func validateItem(it *Item) error {
	switch {
	case it.ItemName == "":
		return apperr.Validation("item_name is required")
	case !validCategory(it.Category):
		return apperr.Validation("category must be one of %s", strings.Join(Categories, ", "))
	case it.Quantity < 0:
		return apperr.Validation("quantity must not be negative")
	case it.ReorderLevel < 0:
		return apperr.Validation("reorder_level must not be negative")
	case it.CostPerUnit < 0:
		return apperr.Validation("cost_per_unit must not be negative")
	}
	return nil
}

func (s *Service) derive(it *Item) {
	it.Status = DeriveStatus(it.Quantity, it.ReorderLevel, it.ExpiryDate, s.now())
}

func (s *Service) Create(ctx context.Context, it *Item) error {
	normalize(it)
	if err := validateItem(it); err != nil {
		return err
	}
	s.derive(it)
	actor := auth.UserIDFromContext(ctx)
	it.CreatedBy, it.UpdatedBy = actor, actor
	if err := s.repo.Create(ctx, it); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityInventory, activitylog.ActionCreate, it.ID.String(),
		map[string]interface{}{"item_name": it.ItemName, "quantity": it.Quantity})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Update(ctx context.Context, it *Item) error {
	existing, err := s.repo.GetByID(ctx, it.ID)
	if err != nil {
		return err
	}
	normalize(it)
	if err := validateItem(it); err != nil {
		return err
	}
	s.derive(it)
	it.CreatedBy = existing.CreatedBy
	it.CreatedAt = existing.CreatedAt
	it.UpdatedBy = auth.UserIDFromContext(ctx)
	if err := s.repo.Update(ctx, it); err != nil {
		return err
	}
	s.activity.Log(ctx, it.UpdatedBy, activitylog.EntityInventory, activitylog.ActionUpdate, it.ID.String(),
		map[string]interface{}{"status": it.Status})
	return nil
}

// AdjustQuantity adds delta (negative for consumption) and re-derives the
// status, expiry included. The row stays locked from read to write, so
// concurrent adjustments apply one after another.
func (s *Service) AdjustQuantity(ctx context.Context, id uuid.UUID, delta float64, reason string) (*Item, error) {
	if delta == 0 {
		return nil, apperr.Validation("adjustment must not be zero")
	}
	var it *Item
	var from string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		it, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := math.Round((it.Quantity+delta)*100) / 100
		if next < 0 {
			return apperr.Validation("insufficient quantity: %.2f %s available", it.Quantity, it.Unit)
		}
		from = it.Status
		it.Quantity = next
		s.derive(it)
		it.UpdatedBy = auth.UserIDFromContext(ctx)
		return s.repo.Update(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, it.UpdatedBy, activitylog.EntityInventory, "adjust", it.ID.String(),
		map[string]interface{}{"delta": delta, "quantity": it.Quantity, "reason": strings.TrimSpace(reason),
			"from": from, "to": it.Status})
	return it, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor := auth.UserIDFromContext(ctx)
	if err := s.repo.SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, activitylog.EntityInventory, activitylog.ActionDelete, id.String(), nil)
	return nil
}

func (s *Service) LowStock(ctx context.Context) ([]*Item, error) {
	return s.repo.LowStock(ctx)
}

func (s *Service) Expired(ctx context.Context) ([]*Item, error) {
	return s.repo.Expired(ctx)
}

// RefreshExpired marks items whose expiry day has arrived since their last
// write. It returns how many changed.
func (s *Service) RefreshExpired(ctx context.Context) (int, error) {
	items, err := s.repo.ListExpiring(ctx, s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, listed := range items {
		var it *Item
		var from string
		changed := false
		err := s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			if it, err = s.repo.GetForUpdate(ctx, listed.ID); err != nil {
				return err
			}
			from = it.Status
			s.derive(it)
			if it.Status == from {
				return nil
			}
			changed = true
			it.UpdatedBy = "system"
			return s.repo.Update(ctx, it)
		})
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if !changed {
			continue
		}
		s.activity.Log(ctx, "system", activitylog.EntityInventory, activitylog.ActionStatusChange, it.ID.String(),
			map[string]interface{}{"from": from, "to": it.Status})
		n++
	}
	return n, nil
}
