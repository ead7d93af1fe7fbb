package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	"github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
	Feed  *livefeed.Hub
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.LedgerConfig
	repo  domain.Repository
	feed  *livefeed.Hub
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("installment.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg.Ledger,
		repo:  p.Repo,
		feed:  p.Feed,
	}
}

// Schedule emits Count installments of amount/Count each. The equal split is
// deliberate: the last installment is not adjusted for rounding drift, so
// 100/3 yields three installments of 33.33. Due dates advance one cadence
// period per installment number, which keeps the schedule strictly
// increasing.
func (s *Service) Schedule(ctx context.Context, tx *gorm.DB, req domain.ScheduleRequest) ([]domain.Installment, error) {
	if req.Count < domain.MinCount || req.Count > domain.MaxCount {
		return nil, domain.ErrInvalidCount
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if req.PaymentID == 0 || req.FinanceID == 0 || req.CustomerID == 0 {
		return nil, domain.ErrInvalidFilter
	}

	cadence := s.cfg.InstallmentCadenceMonths
	if cadence < 1 {
		cadence = 1
	}

	base := req.Amount.Div(decimal.NewFromInt(int64(req.Count))).Round(2)
	now := s.clock.Now()

	installments := make([]domain.Installment, 0, req.Count)
	for number := 1; number <= req.Count; number++ {
		installments = append(installments, domain.Installment{
			ID:                s.genID.Generate(),
			PaymentID:         req.PaymentID,
			FinanceID:         req.FinanceID,
			CustomerID:        req.CustomerID,
			InstallmentNumber: number,
			Amount:            base,
			DueDate:           req.Reference.AddDate(0, number*cadence, 0),
			Status:            domain.StatusPending,
			CreatedAt:         now,
		})
	}

	if err := s.repo.InsertBatch(ctx, tx, installments); err != nil {
		return nil, err
	}
	return installments, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInstallmentRequest) ([]domain.Installment, error) {
	filter := domain.ListInstallmentFilter{
		From: req.From,
		To:   req.To,
	}
	if raw := strings.TrimSpace(req.PaymentID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidFilter
		}
		filter.PaymentID = id
	}
	if raw := strings.TrimSpace(req.FinanceID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidFilter
		}
		filter.FinanceID = id
	}
	if filter.PaymentID == 0 && filter.FinanceID == 0 && filter.From == nil && filter.To == nil {
		return nil, domain.ErrInvalidFilter
	}

	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Installment, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Installment{}, domain.ErrInvalidID
	}
	switch req.Status {
	case domain.StatusPending, domain.StatusPaid, domain.StatusReconciled:
	default:
		return domain.Installment{}, domain.ErrInvalidStatus
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Installment{}, err
	}
	if existing == nil {
		return domain.Installment{}, domain.ErrNotFound
	}

	// Omitted fields keep their stored values; only pending resets paid_date.
	paidDate := req.PaidDate
	if paidDate == nil {
		paidDate = existing.PaidDate
	}
	if req.Status == domain.StatusPending {
		paidDate = nil
	} else if paidDate == nil {
		now := s.clock.Now()
		paidDate = &now
	}

	bankTransactionID := req.BankTransactionID
	if bankTransactionID == nil {
		bankTransactionID = existing.BankTransactionID
	}

	affected, err := s.repo.UpdateStatus(ctx, s.db, id, req.Status, paidDate, bankTransactionID)
	if err != nil {
		return domain.Installment{}, err
	}
	if affected == 0 {
		return domain.Installment{}, domain.ErrNotFound
	}

	updated, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Installment{}, err
	}
	if updated == nil {
		return domain.Installment{}, domain.ErrNotFound
	}

	s.publishSnapshot(ctx, updated.CustomerID, updated.FinanceID)
	return *updated, nil
}

func (s *Service) FindOverdue(ctx context.Context, graceDays int, methods []string) ([]domain.Installment, error) {
	if graceDays < 0 {
		graceDays = s.cfg.GraceDays
	}
	cutoff := s.clock.Now().AddDate(0, 0, -graceDays)
	return s.repo.ListOverdue(ctx, s.db, cutoff, normalizeMethods(methods))
}

func (s *Service) GroupOverdueByCustomer(ctx context.Context, graceDays int, methods []string) ([]domain.CustomerOverdue, error) {
	overdue, err := s.FindOverdue(ctx, graceDays, methods)
	if err != nil {
		return nil, err
	}

	byCustomer := make(map[snowflake.ID]*domain.CustomerOverdue)
	for _, installment := range overdue {
		entry, ok := byCustomer[installment.CustomerID]
		if !ok {
			entry = &domain.CustomerOverdue{
				CustomerID:    installment.CustomerID,
				TotalOverdue:  decimal.Zero,
				OldestDueDate: installment.DueDate,
			}
			byCustomer[installment.CustomerID] = entry
		}
		entry.TotalOverdue = entry.TotalOverdue.Add(installment.Amount)
		entry.InstallmentCount++
		if installment.DueDate.Before(entry.OldestDueDate) {
			entry.OldestDueDate = installment.DueDate
		}
	}

	grouped := make([]domain.CustomerOverdue, 0, len(byCustomer))
	for _, entry := range byCustomer {
		grouped = append(grouped, *entry)
	}
	sort.Slice(grouped, func(i, j int) bool {
		return grouped[i].OldestDueDate.Before(grouped[j].OldestDueDate)
	})
	return grouped, nil
}

func (s *Service) publishSnapshot(ctx context.Context, customerID, financeID snowflake.ID) {
	if s.feed == nil || customerID == 0 {
		return
	}
	installments, err := s.repo.List(ctx, s.db, domain.ListInstallmentFilter{FinanceID: financeID})
	if err != nil {
		s.log.Warn("failed to build installment snapshot", zap.Error(err))
		return
	}
	s.feed.Publish(customerID.String(), livefeed.Event{
		CustomerID: customerID.String(),
		Kind:       livefeed.KindInstallments,
		FinanceID:  financeID.String(),
		Snapshot:   installments,
	})
}

func normalizeMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	for _, method := range methods {
		if trimmed := strings.ToLower(strings.TrimSpace(method)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
