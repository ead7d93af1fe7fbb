package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScheduleRequest describes a payment split. The caller has already verified
// that the payment method supports installments.
type ScheduleRequest struct {
	PaymentID  snowflake.ID
	FinanceID  snowflake.ID
	CustomerID snowflake.ID
	Amount     decimal.Decimal
	Count      int
	Reference  time.Time
}

type ListInstallmentRequest struct {
	PaymentID string
	FinanceID string
	From      *time.Time
	To        *time.Time
}

type UpdateStatusRequest struct {
	ID                string
	Status            Status
	PaidDate          *time.Time
	BankTransactionID *string
}

type Service interface {
	// Schedule splits the payment into Count equal installments with a
	// monotonically increasing due-date schedule and inserts them on the
	// caller's transaction handle, so the split commits with its payment
	// or not at all.
	Schedule(ctx context.Context, tx *gorm.DB, req ScheduleRequest) ([]Installment, error)

	List(context.Context, ListInstallmentRequest) ([]Installment, error)
	UpdateStatus(context.Context, UpdateStatusRequest) (Installment, error)

	// FindOverdue returns pending installments whose due date is more than
	// graceDays in the past. A non-empty methods slice keeps only
	// installments whose parent payment method is in the set.
	FindOverdue(ctx context.Context, graceDays int, methods []string) ([]Installment, error)
	GroupOverdueByCustomer(ctx context.Context, graceDays int, methods []string) ([]CustomerOverdue, error)
}

var (
	ErrNotFound      = errors.New("installment_not_found")
	ErrInvalidID     = errors.New("invalid_installment_id")
	ErrInvalidCount  = errors.New("invalid_installment_count")
	ErrInvalidAmount = errors.New("invalid_installment_amount")
	ErrInvalidStatus = errors.New("invalid_installment_status")
	ErrInvalidFilter = errors.New("invalid_installment_filter")
)
