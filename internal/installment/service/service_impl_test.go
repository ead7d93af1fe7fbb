package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/clock"
	"github.com/clinvia/clinvia/internal/config"
	"github.com/clinvia/clinvia/internal/installment/domain"
	installmentrepository "github.com/clinvia/clinvia/internal/installment/repository"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestScheduleEqualSplit(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	reference := env.clk.Now()
	installments, err := env.svc.Schedule(ctx, env.db, domain.ScheduleRequest{
		PaymentID:  env.node.Generate(),
		FinanceID:  env.node.Generate(),
		CustomerID: env.node.Generate(),
		Amount:     decimal.NewFromInt(100),
		Count:      3,
		Reference:  reference,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(installments))
	}

	// 100/3 stays at 33.33 on every installment; the tail is not adjusted.
	for i, installment := range installments {
		if !installment.Amount.Equal(decimal.NewFromFloat(33.33)) {
			t.Fatalf("installment %d: expected 33.33, got %s", i+1, installment.Amount)
		}
		if installment.InstallmentNumber != i+1 {
			t.Fatalf("expected number %d, got %d", i+1, installment.InstallmentNumber)
		}
		wantDue := reference.AddDate(0, i+1, 0)
		if !installment.DueDate.Equal(wantDue) {
			t.Fatalf("installment %d: expected due %s, got %s", i+1, wantDue, installment.DueDate)
		}
		if installment.Status != domain.StatusPending {
			t.Fatalf("expected pending, got %s", installment.Status)
		}
	}

	var count int
	if err := env.db.Raw(`SELECT COUNT(1) FROM installments`).Scan(&count).Error; err != nil {
		t.Fatalf("count installments: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
}

func TestScheduleCountBounds(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	for _, count := range []int{0, 1, 25} {
		_, err := env.svc.Schedule(ctx, env.db, domain.ScheduleRequest{
			PaymentID:  env.node.Generate(),
			FinanceID:  env.node.Generate(),
			CustomerID: env.node.Generate(),
			Amount:     decimal.NewFromInt(100),
			Count:      count,
			Reference:  env.clk.Now(),
		})
		if err != domain.ErrInvalidCount {
			t.Fatalf("count %d: expected ErrInvalidCount, got %v", count, err)
		}
	}

	if _, err := env.svc.Schedule(ctx, env.db, domain.ScheduleRequest{
		PaymentID:  env.node.Generate(),
		FinanceID:  env.node.Generate(),
		CustomerID: env.node.Generate(),
		Amount:     decimal.Zero,
		Count:      2,
		Reference:  env.clk.Now(),
	}); err != domain.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestListRequiresFilter(t *testing.T) {
	env := setupInstallmentService(t)

	if _, err := env.svc.List(context.Background(), domain.ListInstallmentRequest{}); err != domain.ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	if _, err := env.svc.List(context.Background(), domain.ListInstallmentRequest{PaymentID: "junk"}); err != domain.ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter for bad id, got %v", err)
	}
}

func TestUpdateStatusManagesPaidDate(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	installments := env.scheduleOne(t, "credito", decimal.NewFromInt(100), 2)
	target := installments[0]

	updated, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     target.ID.String(),
		Status: domain.StatusPaid,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", updated.Status)
	}
	if updated.PaidDate == nil || !updated.PaidDate.Equal(env.clk.Now()) {
		t.Fatalf("expected paid date defaulted to now, got %v", updated.PaidDate)
	}

	txn := "bank-123"
	updated, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:                target.ID.String(),
		Status:            domain.StatusReconciled,
		BankTransactionID: &txn,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if updated.BankTransactionID == nil || *updated.BankTransactionID != txn {
		t.Fatalf("expected bank transaction recorded, got %v", updated.BankTransactionID)
	}

	// Moving back to pending clears the paid date.
	updated, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     target.ID.String(),
		Status: domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if updated.PaidDate != nil {
		t.Fatalf("expected paid date cleared, got %v", updated.PaidDate)
	}

	if _, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     target.ID.String(),
		Status: domain.Status("cancelled"),
	}); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     env.node.Generate().String(),
		Status: domain.StatusPaid,
	}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusKeepsOmittedFields(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	installments := env.scheduleOne(t, "credito", decimal.NewFromInt(100), 2)
	target := installments[0]

	paidOn := env.clk.Now().AddDate(0, 0, -1)
	txn := "bank-456"
	updated, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:                target.ID.String(),
		Status:            domain.StatusPaid,
		PaidDate:          &paidOn,
		BankTransactionID: &txn,
	})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if updated.PaidDate == nil || !updated.PaidDate.Equal(paidOn) {
		t.Fatalf("expected explicit paid date %v, got %v", paidOn, updated.PaidDate)
	}

	// Changing only the status must not touch the stored values.
	updated, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     target.ID.String(),
		Status: domain.StatusReconciled,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if updated.BankTransactionID == nil || *updated.BankTransactionID != txn {
		t.Fatalf("expected bank transaction kept, got %v", updated.BankTransactionID)
	}
	if updated.PaidDate == nil || !updated.PaidDate.Equal(paidOn) {
		t.Fatalf("expected paid date kept as %v, got %v", paidOn, updated.PaidDate)
	}
}

func TestFindOverdueHonorsGraceAndMethods(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	// Due 10 days ago on a trackable method: overdue under a 5 day grace.
	overdueRows := env.scheduleOne(t, "credito", decimal.NewFromInt(100), 2)
	env.setDueDate(t, overdueRows[0].ID, env.clk.Now().AddDate(0, 0, -10))
	env.setDueDate(t, overdueRows[1].ID, env.clk.Now().AddDate(0, 0, -3)) // inside grace

	// Cash payments are never chased.
	cashRows := env.scheduleOne(t, "dinheiro", decimal.NewFromInt(50), 2)
	env.setDueDate(t, cashRows[0].ID, env.clk.Now().AddDate(0, 0, -30))

	overdue, err := env.svc.FindOverdue(ctx, -1, []string{"credito", "boleto"})
	if err != nil {
		t.Fatalf("find overdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected 1 overdue installment, got %d", len(overdue))
	}
	if overdue[0].ID != overdueRows[0].ID {
		t.Fatalf("wrong installment flagged: %s", overdue[0].ID)
	}

	// A paid installment is no longer overdue.
	if _, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     overdueRows[0].ID.String(),
		Status: domain.StatusPaid,
	}); err != nil {
		t.Fatalf("pay installment: %v", err)
	}
	overdue, err = env.svc.FindOverdue(ctx, -1, []string{"credito"})
	if err != nil {
		t.Fatalf("find overdue after pay: %v", err)
	}
	if len(overdue) != 0 {
		t.Fatalf("expected no overdue after payment, got %d", len(overdue))
	}
}

func TestGroupOverdueByCustomerOrdering(t *testing.T) {
	env := setupInstallmentService(t)
	ctx := context.Background()

	older := env.scheduleOne(t, "credito", decimal.NewFromInt(100), 2)
	env.setDueDate(t, older[0].ID, env.clk.Now().AddDate(0, 0, -40))
	env.setDueDate(t, older[1].ID, env.clk.Now().AddDate(0, 0, -20))

	newer := env.scheduleOne(t, "boleto", decimal.NewFromInt(60), 2)
	env.setDueDate(t, newer[0].ID, env.clk.Now().AddDate(0, 0, -10))

	grouped, err := env.svc.GroupOverdueByCustomer(ctx, -1, nil)
	if err != nil {
		t.Fatalf("group overdue: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(grouped))
	}

	// Oldest debt first.
	if grouped[0].CustomerID != older[0].CustomerID {
		t.Fatalf("expected oldest debtor first")
	}
	if !grouped[0].TotalOverdue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100, got %s", grouped[0].TotalOverdue)
	}
	if grouped[0].InstallmentCount != 2 {
		t.Fatalf("expected 2 installments, got %d", grouped[0].InstallmentCount)
	}
	if !grouped[1].TotalOverdue.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected total 30, got %s", grouped[1].TotalOverdue)
	}
}

type installmentTestEnv struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
	clk  *clock.FakeClock
}

func setupInstallmentService(t *testing.T) *installmentTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	statements := []string{
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			finance_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			method TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			has_installments BOOLEAN NOT NULL DEFAULT 0,
			installments_count INTEGER,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE installments (
			id BIGINT PRIMARY KEY,
			payment_id BIGINT NOT NULL,
			finance_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			installment_number INTEGER NOT NULL,
			amount NUMERIC NOT NULL,
			due_date DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			paid_date DATETIME,
			bank_transaction_id TEXT,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}

	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Cfg: config.Config{
			Ledger: config.LedgerConfig{
				GraceDays:                5,
				TrackableMethods:         []string{"credito", "debito", "pix", "transferencia", "boleto"},
				InstallmentMethods:       []string{"credito", "boleto"},
				InstallmentCadenceMonths: 1,
				SettlementRetries:        3,
			},
		},
		Repo: installmentrepository.Provide(),
		Feed: livefeed.NewHub(),
	})

	return &installmentTestEnv{svc: svc, db: db, node: node, clk: clk}
}

// scheduleOne seeds a payment with the given method and splits it, so the
// overdue method filter has a parent row to join against.
func (env *installmentTestEnv) scheduleOne(t *testing.T, method string, amount decimal.Decimal, count int) []domain.Installment {
	t.Helper()

	paymentID := env.node.Generate()
	customerID := env.node.Generate()
	financeID := env.node.Generate()
	if err := env.db.Exec(
		`INSERT INTO payments (id, finance_id, customer_id, method, amount, has_installments, installments_count, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		paymentID, financeID, customerID, method, amount, count, env.clk.Now(),
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	installments, err := env.svc.Schedule(context.Background(), env.db, domain.ScheduleRequest{
		PaymentID:  paymentID,
		FinanceID:  financeID,
		CustomerID: customerID,
		Amount:     amount,
		Count:      count,
		Reference:  env.clk.Now(),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return installments
}

func (env *installmentTestEnv) setDueDate(t *testing.T, id snowflake.ID, due time.Time) {
	t.Helper()

	if err := env.db.Exec(`UPDATE installments SET due_date = ? WHERE id = ?`, due, id).Error; err != nil {
		t.Fatalf("set due date: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
