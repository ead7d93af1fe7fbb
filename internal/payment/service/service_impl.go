package service

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/clinvia/clinvia/internal/metrics"
	"github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Cfg            config.Config
	Repo           domain.Repository
	FinanceSvc     financedomain.Service
	InstallmentSvc installmentdomain.Service
	Feed           *livefeed.Hub
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	cfg            config.LedgerConfig
	repo           domain.Repository
	financeSvc     financedomain.Service
	installmentSvc installmentdomain.Service
	feed           *livefeed.Hub
	metrics        *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("payment.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		cfg:            p.Cfg.Ledger,
		repo:           p.Repo,
		financeSvc:     p.FinanceSvc,
		installmentSvc: p.InstallmentSvc,
		feed:           p.Feed,
		metrics:        p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordPaymentResponse, error) {
	financeID, err := snowflake.ParseString(strings.TrimSpace(req.FinanceID))
	if err != nil || financeID == 0 {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidFinanceID
	}

	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !slices.Contains(domain.KnownMethods, method) {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidMethod
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidAmount
	}
	if req.Installments != nil && !slices.Contains(s.cfg.InstallmentMethods, method) {
		return domain.RecordPaymentResponse{}, domain.ErrMethodNotInstallable
	}

	// Resolve the owning customer up front; a missing finance must abort
	// before anything is written.
	finance, err := s.financeSvc.GetByID(ctx, financedomain.GetFinanceRequest{ID: financeID.String()})
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}

	now := s.clock.Now()
	payment := domain.Payment{
		ID:         s.genID.Generate(),
		FinanceID:  financeID,
		CustomerID: finance.CustomerID,
		Method:     method,
		Amount:     req.Amount,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
	}
	if req.Installments != nil {
		count := req.Installments.Count
		payment.HasInstallments = true
		payment.InstallmentsCount = &count
	}

	var (
		settlement   financedomain.Settlement
		warnings     []financedomain.Warning
		installments []installmentdomain.Installment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		settlement, warnings, txErr = s.financeSvc.ApplySettlement(ctx, tx, financeID, req.Amount)
		if txErr != nil {
			return txErr
		}

		if txErr = s.repo.Insert(ctx, tx, &payment); txErr != nil {
			return txErr
		}

		if payment.HasInstallments {
			installments, txErr = s.installmentSvc.Schedule(ctx, tx, installmentdomain.ScheduleRequest{
				PaymentID:  payment.ID,
				FinanceID:  financeID,
				CustomerID: finance.CustomerID,
				Amount:     payment.Amount,
				Count:      *payment.InstallmentsCount,
				Reference:  payment.CreatedAt,
			})
			if txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecorded.WithLabelValues(method).Inc()
	}
	s.log.Info("payment recorded",
		zap.String("finance_id", financeID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("method", method),
		zap.String("amount", req.Amount.String()),
		zap.String("status", string(settlement.Status)),
	)

	s.publishSnapshot(ctx, finance.CustomerID, financeID)
	s.financeSvc.PublishSnapshot(ctx, finance.CustomerID)

	installmentIDs := make([]string, 0, len(installments))
	for _, installment := range installments {
		installmentIDs = append(installmentIDs, installment.ID.String())
	}

	return domain.RecordPaymentResponse{
		Payment:        domain.ViewOf(payment),
		InstallmentIDs: installmentIDs,
		Settlement:     settlement,
		Warnings:       warnings,
	}, nil
}

func (s *Service) ListByFinance(ctx context.Context, rawFinanceID string) ([]domain.View, error) {
	financeID, err := snowflake.ParseString(strings.TrimSpace(rawFinanceID))
	if err != nil || financeID == 0 {
		return nil, domain.ErrInvalidFinanceID
	}

	payments, err := s.repo.ListByFinance(ctx, s.db, financeID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		views := make([]domain.View, 0, len(payments))
		for _, payment := range payments {
			views = append(views, domain.ViewOf(payment))
		}
		return views, nil
	}

	// No normalized payments: surface the finance's embedded legacy array,
	// if it predates the normalized model.
	finance, err := s.financeSvc.GetByID(ctx, financedomain.GetFinanceRequest{ID: financeID.String()})
	if err != nil {
		return nil, err
	}
	return s.legacyViews(finance)
}

func (s *Service) publishSnapshot(ctx context.Context, customerID, financeID snowflake.ID) {
	if s.feed == nil || customerID == 0 {
		return
	}
	views, err := s.ListByFinance(ctx, financeID.String())
	if err != nil {
		s.log.Warn("failed to build payment snapshot", zap.Error(err))
		return
	}
	s.feed.Publish(customerID.String(), livefeed.Event{
		CustomerID: customerID.String(),
		Kind:       livefeed.KindPayments,
		FinanceID:  financeID.String(),
		Snapshot:   views,
	})
}
