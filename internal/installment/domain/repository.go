package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListInstallmentFilter struct {
	PaymentID snowflake.ID
	FinanceID snowflake.ID
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, installments []Installment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Installment, error)
	List(ctx context.Context, db *gorm.DB, filter ListInstallmentFilter) ([]Installment, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, paidDate *time.Time, bankTransactionID *string) (int64, error)

	// ListOverdue selects pending installments due before cutoff, joined
	// against the parent payment's method when methods is non-empty.
	ListOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, methods []string) ([]Installment, error)
	DeleteByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) (int64, error)
}
