package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status of a single installment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusReconciled Status = "reconciled"
)

// Installment count bounds for a split payment.
const (
	MinCount = 2
	MaxCount = 24
)

// Installment is one scheduled partial payment derived from a payment split
// over multiple due dates.
type Installment struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	PaymentID         snowflake.ID    `gorm:"not null;index" json:"payment_id"`
	FinanceID         snowflake.ID    `gorm:"not null;index" json:"finance_id"`
	CustomerID        snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	InstallmentNumber int             `gorm:"not null" json:"installment_number"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	DueDate           time.Time       `gorm:"not null" json:"due_date"`
	Status            Status          `gorm:"type:text;not null;default:'pending'" json:"status"`
	PaidDate          *time.Time      `json:"paid_date,omitempty"`
	BankTransactionID *string         `json:"bank_transaction_id,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Installment) TableName() string { return "installments" }

// CustomerOverdue is the per-customer reduction of the overdue listing.
type CustomerOverdue struct {
	CustomerID       snowflake.ID    `json:"customer_id"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	OldestDueDate    time.Time       `json:"oldest_due_date"`
	InstallmentCount int             `json:"installment_count"`
}
