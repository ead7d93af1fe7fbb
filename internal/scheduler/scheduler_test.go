package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type financeStub struct {
	repairCalls int
	repaired    int
	repairErr   error
}

func (f *financeStub) Create(context.Context, financedomain.CreateFinanceRequest) (financedomain.Finance, []financedomain.Warning, error) {
	return financedomain.Finance{}, nil, nil
}

func (f *financeStub) GetByID(context.Context, financedomain.GetFinanceRequest) (financedomain.Finance, error) {
	return financedomain.Finance{}, nil
}

func (f *financeStub) ListByCustomer(context.Context, string) ([]financedomain.Finance, error) {
	return nil, nil
}

func (f *financeStub) List(context.Context, financedomain.ListFinanceRequest) (financedomain.ListFinanceResponse, error) {
	return financedomain.ListFinanceResponse{}, nil
}

func (f *financeStub) ApplySettlement(context.Context, *gorm.DB, snowflake.ID, decimal.Decimal) (financedomain.Settlement, []financedomain.Warning, error) {
	return financedomain.Settlement{}, nil, nil
}

func (f *financeStub) Delete(context.Context, string) ([]financedomain.Warning, error) {
	return nil, nil
}

func (f *financeStub) PublishSnapshot(context.Context, snowflake.ID) {}

func (f *financeStub) RepairPendingCopies(context.Context) (int, error) {
	f.repairCalls++
	return f.repaired, f.repairErr
}

type installmentStub struct {
	overdue    []installmentdomain.Installment
	grouped    []installmentdomain.CustomerOverdue
	gotGrace   int
	gotMethods []string
	overdueErr error
	findCalls  int
	groupCalls int
}

func (i *installmentStub) Schedule(context.Context, *gorm.DB, installmentdomain.ScheduleRequest) ([]installmentdomain.Installment, error) {
	return nil, nil
}

func (i *installmentStub) List(context.Context, installmentdomain.ListInstallmentRequest) ([]installmentdomain.Installment, error) {
	return nil, nil
}

func (i *installmentStub) UpdateStatus(context.Context, installmentdomain.UpdateStatusRequest) (installmentdomain.Installment, error) {
	return installmentdomain.Installment{}, nil
}

func (i *installmentStub) FindOverdue(_ context.Context, graceDays int, methods []string) ([]installmentdomain.Installment, error) {
	i.findCalls++
	i.gotGrace = graceDays
	i.gotMethods = methods
	return i.overdue, i.overdueErr
}

func (i *installmentStub) GroupOverdueByCustomer(context.Context, int, []string) ([]installmentdomain.CustomerOverdue, error) {
	i.groupCalls++
	return i.grouped, i.overdueErr
}

func newTestScheduler(financeSvc financedomain.Service, installmentSvc installmentdomain.Service) *Scheduler {
	return New(Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
		Cfg: config.Config{
			Ledger: config.LedgerConfig{
				GraceDays:        5,
				TrackableMethods: []string{"credito", "boleto"},
				SweepInterval:    time.Hour,
				RepairInterval:   time.Hour,
			},
		},
		FinanceSvc:     financeSvc,
		InstallmentSvc: installmentSvc,
	})
}

func TestOverdueSweepUsesConfiguredDefaults(t *testing.T) {
	installments := &installmentStub{
		overdue: []installmentdomain.Installment{{ID: 1}, {ID: 2}},
		grouped: []installmentdomain.CustomerOverdue{{InstallmentCount: 2}},
	}
	s := newTestScheduler(&financeStub{}, installments)

	if err := s.RunOverdueSweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if installments.findCalls != 1 || installments.groupCalls != 1 {
		t.Fatalf("expected one find and one group call, got %d/%d", installments.findCalls, installments.groupCalls)
	}
	if installments.gotGrace != 5 {
		t.Fatalf("expected configured grace 5, got %d", installments.gotGrace)
	}
	if len(installments.gotMethods) != 2 {
		t.Fatalf("expected configured methods, got %v", installments.gotMethods)
	}
}

func TestOverdueSweepPropagatesError(t *testing.T) {
	wantErr := errors.New("db down")
	s := newTestScheduler(&financeStub{}, &installmentStub{overdueErr: wantErr})

	if err := s.RunOverdueSweep(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestCopyRepairRuns(t *testing.T) {
	finances := &financeStub{repaired: 3}
	s := newTestScheduler(finances, &installmentStub{})

	if err := s.RunCopyRepair(context.Background()); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if finances.repairCalls != 1 {
		t.Fatalf("expected one repair call, got %d", finances.repairCalls)
	}

	finances.repairErr = errors.New("boom")
	if err := s.RunCopyRepair(context.Background()); err == nil {
		t.Fatalf("expected repair error surfaced")
	}
}
