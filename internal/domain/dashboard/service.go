package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/medilab/lims/internal/domain/inventory"
	"github.com/medilab/lims/internal/domain/invoice"
	"github.com/medilab/lims/internal/domain/lab"
	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type counter struct {
	dst      *int
	table    string
	statuses []string
}

// gather runs every count concurrently and fails on the first error.
func (s *Service) gather(ctx context.Context, counters ...counter) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counters {
		c := c
		g.Go(func() error {
			n, err := s.repo.Count(gctx, c.table, c.statuses...)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	var st AdminStats
	err := s.gather(ctx,
		counter{dst: &st.TotalUsers, table: TableUsers},
		counter{dst: &st.TotalPatients, table: TablePatients},
		counter{dst: &st.TotalOrders, table: TableOrders},
		counter{dst: &st.LowStockItems, table: TableInventory, statuses: []string{inventory.StatusLowStock, inventory.StatusOutOfStock}},
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) Staff(ctx context.Context) (*StaffStats, error) {
	var st StaffStats
	err := s.gather(ctx,
		counter{dst: &st.PendingSamples, table: TableSamples, statuses: []string{lab.SamplePending, lab.SampleCollected}},
		counter{dst: &st.ActiveOrders, table: TableOrders, statuses: []string{lab.OrderPending, lab.OrderInProgress}},
		counter{dst: &st.PendingInvoices, table: TableInvoices, statuses: []string{invoice.StatusPending}},
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) Doctor(ctx context.Context) (*DoctorStats, error) {
	var st DoctorStats
	err := s.gather(ctx, counter{dst: &st.PendingApprovals, table: TableResults, statuses: []string{lab.ResultPendingApproval}})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ForRole returns the statistics shown on the caller's landing page.
func (s *Service) ForRole(ctx context.Context) (interface{}, error) {
	switch auth.RoleFromContext(ctx) {
	case auth.RoleAdmin:
		return s.Admin(ctx)
	case auth.RoleDoctor:
		return s.Doctor(ctx)
	case auth.RoleTechnician, auth.RoleStaff:
		return s.Staff(ctx)
	default:
		return nil, apperr.Forbidden("no dashboard for this role")
	}
}
