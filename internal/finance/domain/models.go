package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the derived settlement state of a finance.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Epsilon is the rounding tolerance applied to every balance invariant check.
var Epsilon = decimal.New(1, -2) // 0.01

// Item is one sold service line on a finance.
type Item struct {
	ServiceName string          `json:"service_name"`
	Price       decimal.Decimal `json:"price"`
}

// Finance is a recorded sale against a customer. It is stored twice: in the
// global index (table finances) and in the per-customer copy (table
// customer_finances). Both copies must carry identical paid/balance/status
// after every successful mutation.
type Finance struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID     snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Items          datatypes.JSON  `gorm:"type:jsonb;not null" json:"items"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Paid           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid"`
	Balance        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance"`
	Status         Status          `gorm:"type:text;not null" json:"status"`
	CreditsGranted int             `gorm:"not null;default:0" json:"credits_granted"`
	LegacyPayments datatypes.JSON  `gorm:"type:jsonb" json:"-"`
	SchemaVersion  int             `gorm:"not null;default:2" json:"-"`
	Version        int             `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Finance) TableName() string { return "finances" }

// Schema versions. Version 1 predates the normalized payment model and may
// carry embedded legacy payments; version 2 keeps payments in their own table.
const (
	SchemaVersionLegacy     = 1
	SchemaVersionNormalized = 2
)

// StatusFor derives the settlement status from paid and balance.
func StatusFor(paid, balance decimal.Decimal) Status {
	switch {
	case balance.LessThanOrEqual(Epsilon):
		return StatusPaid
	case paid.GreaterThan(decimal.Zero):
		return StatusPartial
	default:
		return StatusPending
	}
}

// Settlement is the paid/balance/status triple written to both copies by the
// reconciliation engine.
type Settlement struct {
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
	Status  Status          `json:"status"`
}

// Repair records a settlement that reached only one of the two finance
// copies. The background repair job converges the copies later.
type Repair struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	FinanceID   snowflake.ID `gorm:"not null" json:"finance_id"`
	MissingCopy string       `gorm:"not null" json:"missing_copy"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	RepairedAt  *time.Time   `json:"repaired_at,omitempty"`
}

func (Repair) TableName() string { return "finance_repairs" }

// Copy names recorded on Repair rows.
const (
	CopyGlobal   = "global"
	CopyCustomer = "customer"
)
