package scheduler

import (
	"context"
	"time"

	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/clinvia/clinvia/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	Cfg            config.Config
	FinanceSvc     financedomain.Service
	InstallmentSvc installmentdomain.Service
	Metrics        *metrics.Metrics `optional:"true"`
}

// Scheduler drives the periodic ledger jobs: the overdue sweep and the
// partial-write copy repair.
type Scheduler struct {
	log            *zap.Logger
	clock          clock.Clock
	cfg            config.LedgerConfig
	financeSvc     financedomain.Service
	installmentSvc installmentdomain.Service
	metrics        *metrics.Metrics
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:            p.Log.Named("scheduler"),
		clock:          p.Clock,
		cfg:            p.Cfg.Ledger,
		financeSvc:     p.FinanceSvc,
		installmentSvc: p.InstallmentSvc,
		metrics:        p.Metrics,
	}
}

// RunOverdueSweep refreshes the overdue gauge and logs the per-customer
// collection picture with the configured defaults.
func (s *Scheduler) RunOverdueSweep(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	start := s.clock.Now()
	overdue, err := s.installmentSvc.FindOverdue(ctx, s.cfg.GraceDays, s.cfg.TrackableMethods)
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
		return err
	}
	if s.metrics != nil {
		s.metrics.OverdueInstallments.Set(float64(len(overdue)))
	}

	grouped, err := s.installmentSvc.GroupOverdueByCustomer(ctx, s.cfg.GraceDays, s.cfg.TrackableMethods)
	if err != nil {
		s.log.Error("overdue grouping failed", zap.Error(err))
		return err
	}
	for _, entry := range grouped {
		s.log.Info("customer has overdue installments",
			zap.String("customer_id", entry.CustomerID.String()),
			zap.String("total_overdue", entry.TotalOverdue.String()),
			zap.Time("oldest_due_date", entry.OldestDueDate),
			zap.Int("installments", entry.InstallmentCount),
		)
	}

	s.log.Info("overdue sweep finished",
		zap.Int("overdue", len(overdue)),
		zap.Int("customers", len(grouped)),
		zap.Duration("took", s.clock.Now().Sub(start)),
	)
	return nil
}

// RunCopyRepair converges finance copies flagged as partial writes.
func (s *Scheduler) RunCopyRepair(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	repaired, err := s.financeSvc.RepairPendingCopies(ctx)
	if err != nil {
		s.log.Error("copy repair failed", zap.Error(err))
		return err
	}
	if repaired > 0 {
		s.log.Info("copy repair finished", zap.Int("repaired", repaired))
	}
	return nil
}

func run(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sweep := time.NewTicker(s.cfg.SweepInterval)
				repair := time.NewTicker(s.cfg.RepairInterval)
				defer sweep.Stop()
				defer repair.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-sweep.C:
						_ = s.RunOverdueSweep(ctx)
					case <-repair.C:
						_ = s.RunCopyRepair(ctx)
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

// Module provides and starts the periodic jobs.
var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(run),
)
