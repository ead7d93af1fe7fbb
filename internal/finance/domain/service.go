package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateFinanceRequest struct {
	CustomerID     string
	Total          decimal.Decimal
	Items          []Item
	CreditsGranted int
}

type GetFinanceRequest struct {
	ID string
}

type ListFinanceRequest struct {
	PageToken string
	PageSize  int
	Search    string
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
}

type ListFinanceResponse struct {
	Finances      []Finance `json:"finances"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	HasMore       bool      `json:"has_more"`
}

// Warning is a non-fatal outcome attached to a best-effort success. The
// finance id and failing step give operators enough to reconcile by hand.
type Warning struct {
	Code      string       `json:"code"`
	Step      string       `json:"step"`
	FinanceID snowflake.ID `json:"finance_id"`
	Detail    string       `json:"detail,omitempty"`
}

const (
	WarnPartialWrite = "partial_write_target"
	WarnCascadeStep  = "cascade_step_failure"
)

type Service interface {
	Create(context.Context, CreateFinanceRequest) (Finance, []Warning, error)
	GetByID(context.Context, GetFinanceRequest) (Finance, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Finance, error)
	List(context.Context, ListFinanceRequest) (ListFinanceResponse, error)

	// ApplySettlement recomputes paid/balance/status for the finance after a
	// payment of the given amount and writes the triple to both storage
	// copies using a compare-and-swap on the row version. It runs on the
	// caller's transaction handle so payment creation and reconciliation
	// commit or fail together.
	ApplySettlement(ctx context.Context, tx *gorm.DB, financeID snowflake.ID, amount decimal.Decimal) (Settlement, []Warning, error)

	// Delete cascades: installments, payments, granted credits, then both
	// finance copies. Steps are individually fallible and are not rolled
	// back; failures come back as warnings.
	Delete(ctx context.Context, id string) ([]Warning, error)

	// PublishSnapshot pushes the customer's current finance list to live
	// subscribers.
	PublishSnapshot(ctx context.Context, customerID snowflake.ID)

	// RepairPendingCopies converges finance copies recorded as partial
	// writes. Returns the number of repairs applied.
	RepairPendingCopies(ctx context.Context) (int, error)
}

var (
	ErrNotFound            = errors.New("finance_not_found")
	ErrInvalidID           = errors.New("invalid_finance_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidTotal        = errors.New("invalid_total")
	ErrInvalidItems        = errors.New("invalid_items")
	ErrInvalidCredits      = errors.New("invalid_credits")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInconsistent        = errors.New("finance_inconsistent")
	ErrSettlementConflict  = errors.New("settlement_conflict")
	ErrInvalidStatusFilter = errors.New("invalid_status_filter")
)
