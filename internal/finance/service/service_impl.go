package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	customerdomain "github.com/clinvia/clinvia/internal/customer/domain"
	"github.com/clinvia/clinvia/internal/finance/domain"
	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/clinvia/clinvia/internal/metrics"
	paymentdomain "github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/clinvia/clinvia/pkg/db"
	"github.com/clinvia/clinvia/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Cfg             config.Config
	Repo            domain.Repository
	PaymentRepo     paymentdomain.Repository
	InstallmentRepo installmentdomain.Repository
	CustomerSvc     customerdomain.Service
	Feed            *livefeed.Hub
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	cfg             config.LedgerConfig
	repo            domain.Repository
	paymentRepo     paymentdomain.Repository
	installmentRepo installmentdomain.Repository
	customerSvc     customerdomain.Service
	feed            *livefeed.Hub
	metrics         *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("finance.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		cfg:             p.Cfg.Ledger,
		repo:            p.Repo,
		paymentRepo:     p.PaymentRepo,
		installmentRepo: p.InstallmentRepo,
		customerSvc:     p.CustomerSvc,
		feed:            p.Feed,
		metrics:         p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateFinanceRequest) (domain.Finance, []domain.Warning, error) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return domain.Finance{}, nil, domain.ErrInvalidCustomer
	}
	if req.Total.IsNegative() {
		return domain.Finance{}, nil, domain.ErrInvalidTotal
	}
	if len(req.Items) == 0 {
		return domain.Finance{}, nil, domain.ErrInvalidItems
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ServiceName) == "" || item.Price.IsNegative() {
			return domain.Finance{}, nil, domain.ErrInvalidItems
		}
	}
	if req.CreditsGranted < 0 {
		return domain.Finance{}, nil, domain.ErrInvalidCredits
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		return domain.Finance{}, nil, domain.ErrInvalidItems
	}

	now := s.clock.Now()
	finance := domain.Finance{
		ID:             s.genID.Generate(),
		CustomerID:     customerID,
		Items:          datatypes.JSON(items),
		Total:          req.Total,
		Paid:           decimal.Zero,
		Balance:        req.Total,
		Status:         domain.StatusFor(decimal.Zero, req.Total),
		CreditsGranted: req.CreditsGranted,
		SchemaVersion:  domain.SchemaVersionNormalized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBoth(ctx, tx, &finance)
	})
	if err != nil {
		return domain.Finance{}, nil, err
	}

	var warnings []domain.Warning
	if req.CreditsGranted > 0 {
		if err := s.customerSvc.IncrementCredits(ctx, customerID.String(), req.CreditsGranted); err != nil {
			s.log.Warn("credit grant failed after finance create",
				zap.String("finance_id", finance.ID.String()),
				zap.Error(err),
			)
			warnings = append(warnings, domain.Warning{
				Code:      domain.WarnCascadeStep,
				Step:      "grant_credits",
				FinanceID: finance.ID,
				Detail:    err.Error(),
			})
		}
	}

	s.PublishSnapshot(ctx, customerID)
	return finance, warnings, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetFinanceRequest) (domain.Finance, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Finance{}, domain.ErrInvalidID
	}

	finance, err := s.repo.FindInTable(ctx, s.db, domain.TableGlobal, id)
	if err != nil {
		return domain.Finance{}, err
	}
	if finance == nil {
		// The per-customer copy is authoritative for live views; fall back
		// to it so a partial write does not hide the finance.
		finance, err = s.repo.FindInTable(ctx, s.db, domain.TableCustomerCopy, id)
		if err != nil {
			return domain.Finance{}, err
		}
	}
	if finance == nil {
		return domain.Finance{}, domain.ErrNotFound
	}
	return *finance, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]domain.Finance, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(customerID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	return s.repo.ListByCustomer(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, req domain.ListFinanceRequest) (domain.ListFinanceResponse, error) {
	filter := domain.ListFinanceFilter{
		Search:   strings.TrimSpace(req.Search),
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusPending, domain.StatusPartial, domain.StatusPaid:
			filter.Status = status
		default:
			return domain.ListFinanceResponse{}, domain.ErrInvalidStatusFilter
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListFinanceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(finance *domain.Finance) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        finance.ID.String(),
			CreatedAt: finance.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	finances := make([]domain.Finance, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		finances = append(finances, *item)
	}

	return domain.ListFinanceResponse{
		Finances:      finances,
		NextPageToken: pageInfo.NextPageToken,
		HasMore:       pageInfo.HasMore,
	}, nil
}

// ApplySettlement is the reconciliation engine. It reads both copies, derives
// the new settlement from the authoritative one, and CAS-writes every copy
// that exists. A version conflict re-reads and retries a bounded number of
// times so two concurrent payments cannot produce a lost update.
func (s *Service) ApplySettlement(ctx context.Context, tx *gorm.DB, financeID snowflake.ID, amount decimal.Decimal) (domain.Settlement, []domain.Warning, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Settlement{}, nil, domain.ErrInvalidAmount
	}

	retries := s.cfg.SettlementRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		global, err := s.repo.FindInTable(ctx, tx, domain.TableGlobal, financeID)
		if err != nil {
			return domain.Settlement{}, nil, err
		}
		customerCopy, err := s.repo.FindInTable(ctx, tx, domain.TableCustomerCopy, financeID)
		if err != nil {
			return domain.Settlement{}, nil, err
		}
		if global == nil && customerCopy == nil {
			return domain.Settlement{}, nil, domain.ErrNotFound
		}

		authoritative := global
		if authoritative == nil {
			authoritative = customerCopy
		}

		drift := authoritative.Total.Sub(authoritative.Paid).Sub(authoritative.Balance)
		if drift.Abs().GreaterThan(domain.Epsilon) {
			s.log.Error("finance violates balance invariant, refusing settlement",
				zap.String("finance_id", financeID.String()),
				zap.String("drift", drift.String()),
			)
			return domain.Settlement{}, nil, domain.ErrInconsistent
		}

		settlement := domain.Settlement{
			Paid:    authoritative.Paid.Add(amount),
			Balance: authoritative.Total.Sub(authoritative.Paid).Sub(amount),
		}
		settlement.Status = domain.StatusFor(settlement.Paid, settlement.Balance)

		conflicted := false
		for _, target := range []struct {
			table  string
			record *domain.Finance
		}{
			{domain.TableGlobal, global},
			{domain.TableCustomerCopy, customerCopy},
		} {
			if target.record == nil {
				continue
			}
			affected, err := s.repo.UpdateSettlementCAS(ctx, tx, target.table, financeID, target.record.Version,
				settlement.Paid, settlement.Balance, settlement.Status)
			if err != nil {
				return domain.Settlement{}, nil, err
			}
			if affected == 0 {
				conflicted = true
				break
			}
		}
		if conflicted {
			continue
		}

		var warnings []domain.Warning
		if global == nil || customerCopy == nil {
			missing := domain.CopyGlobal
			if global != nil {
				missing = domain.CopyCustomer
			}
			warnings = append(warnings, s.recordPartialWrite(ctx, tx, financeID, missing))
		}

		return settlement, warnings, nil
	}

	return domain.Settlement{}, nil, domain.ErrSettlementConflict
}

// recordPartialWrite flags a settlement that reached only one copy. No
// synchronous repair is attempted; the repair job converges the copies later.
func (s *Service) recordPartialWrite(ctx context.Context, tx *gorm.DB, financeID snowflake.ID, missing string) domain.Warning {
	if s.metrics != nil {
		s.metrics.PartialWrites.Inc()
	}
	s.log.Warn("settlement reached only one finance copy",
		zap.String("finance_id", financeID.String()),
		zap.String("missing_copy", missing),
	)

	repair := domain.Repair{
		ID:          s.genID.Generate(),
		FinanceID:   financeID,
		MissingCopy: missing,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertRepair(ctx, tx, &repair); err != nil {
		s.log.Error("failed to record repair target", zap.Error(err))
	}

	return domain.Warning{
		Code:      domain.WarnPartialWrite,
		Step:      "settlement_write",
		FinanceID: financeID,
		Detail:    "missing copy: " + missing,
	}
}

// Delete is the cascade deletion coordinator. Each step is independently
// fallible and logged; earlier steps are never undone on a later failure.
func (s *Service) Delete(ctx context.Context, rawID string) ([]domain.Warning, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	finance, err := s.repo.FindInTable(ctx, s.db, domain.TableGlobal, id)
	if err != nil {
		return nil, err
	}
	if finance == nil {
		finance, err = s.repo.FindInTable(ctx, s.db, domain.TableCustomerCopy, id)
		if err != nil {
			return nil, err
		}
	}
	if finance == nil {
		return nil, domain.ErrNotFound
	}

	var warnings []domain.Warning
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			if s.metrics != nil {
				s.metrics.CascadeStepFailures.WithLabelValues(name).Inc()
			}
			s.log.Warn("cascade deletion step failed",
				zap.String("finance_id", id.String()),
				zap.String("step", name),
				zap.Error(err),
			)
			warnings = append(warnings, domain.Warning{
				Code:      domain.WarnCascadeStep,
				Step:      name,
				FinanceID: id,
				Detail:    err.Error(),
			})
		}
	}

	step("delete_installments", func() error {
		_, err := s.installmentRepo.DeleteByFinance(ctx, s.db, id)
		return err
	})
	step("delete_payments", func() error {
		_, err := s.paymentRepo.DeleteByFinance(ctx, s.db, id)
		return err
	})
	if finance.CreditsGranted > 0 {
		step("reverse_credits", func() error {
			return s.customerSvc.DecrementCredits(ctx, finance.CustomerID.String(), finance.CreditsGranted)
		})
	}
	step("delete_customer_copy", func() error {
		return s.repo.DeleteFromTable(ctx, s.db, domain.TableCustomerCopy, id)
	})
	step("delete_global_copy", func() error {
		return s.repo.DeleteFromTable(ctx, s.db, domain.TableGlobal, id)
	})

	s.PublishSnapshot(ctx, finance.CustomerID)
	return warnings, nil
}

func (s *Service) PublishSnapshot(ctx context.Context, customerID snowflake.ID) {
	if s.feed == nil || customerID == 0 {
		return
	}
	finances, err := s.repo.ListByCustomer(ctx, s.db, customerID)
	if err != nil {
		s.log.Warn("failed to build finance snapshot", zap.Error(err))
		return
	}
	s.feed.Publish(customerID.String(), livefeed.Event{
		CustomerID: customerID.String(),
		Kind:       livefeed.KindFinances,
		Snapshot:   finances,
	})
}

// RepairPendingCopies re-copies paid/balance/status from the surviving copy
// onto the one a settlement missed, then marks the repair row done.
func (s *Service) RepairPendingCopies(ctx context.Context) (int, error) {
	pending, err := s.repo.PendingRepairs(ctx, s.db, 100)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, repair := range pending {
		sourceTable, targetTable := domain.TableGlobal, domain.TableCustomerCopy
		if repair.MissingCopy == domain.CopyGlobal {
			sourceTable, targetTable = domain.TableCustomerCopy, domain.TableGlobal
		}

		source, err := s.repo.FindInTable(ctx, s.db, sourceTable, repair.FinanceID)
		if err != nil {
			return repaired, err
		}
		if source == nil {
			// Finance deleted since; nothing left to converge.
			if err := s.repo.MarkRepaired(ctx, s.db, repair.ID, s.clock.Now()); err != nil {
				return repaired, err
			}
			continue
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			affected, err := s.repo.CopySettlement(ctx, tx, targetTable, source)
			if err != nil {
				return err
			}
			if affected == 0 {
				// A concurrent repairer may have re-inserted the copy first.
				if err := s.repo.InsertCopy(ctx, tx, targetTable, source); err != nil && !db.IsDuplicateKeyErr(err) {
					return err
				}
			}
			return s.repo.MarkRepaired(ctx, tx, repair.ID, s.clock.Now())
		})
		if err != nil {
			return repaired, err
		}

		repaired++
		if s.metrics != nil {
			s.metrics.RepairsApplied.Inc()
		}
		s.log.Info("finance copy repaired",
			zap.String("finance_id", repair.FinanceID.String()),
			zap.String("copy", repair.MissingCopy),
		)
	}

	return repaired, nil
}
