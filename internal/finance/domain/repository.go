package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Storage tables for the two finance copies.
const (
	TableGlobal       = "finances"
	TableCustomerCopy = "customer_finances"
)

type ListFinanceFilter struct {
	Search   string
	Status   Status
	DateFrom *time.Time
	DateTo   *time.Time
}

type Repository interface {
	// InsertBoth writes the finance to the global index and the
	// per-customer copy. Callers wrap it in a transaction.
	InsertBoth(ctx context.Context, db *gorm.DB, finance *Finance) error

	FindInTable(ctx context.Context, db *gorm.DB, table string, id snowflake.ID) (*Finance, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Finance, error)
	List(ctx context.Context, db *gorm.DB, filter ListFinanceFilter, page pagination.Pagination) ([]*Finance, error)

	// UpdateSettlementCAS conditionally writes the settlement triple,
	// guarded by the version the caller read. Zero rows affected means the
	// row changed underneath the caller (or is gone).
	UpdateSettlementCAS(ctx context.Context, db *gorm.DB, table string, id snowflake.ID, readVersion int, paid, balance decimal.Decimal, status Status) (int64, error)

	// CopySettlement overwrites the settlement triple and version in the
	// target table from the source row. Used by the repair job only.
	CopySettlement(ctx context.Context, db *gorm.DB, table string, source *Finance) (int64, error)
	InsertCopy(ctx context.Context, db *gorm.DB, table string, finance *Finance) error

	DeleteFromTable(ctx context.Context, db *gorm.DB, table string, id snowflake.ID) error

	InsertRepair(ctx context.Context, db *gorm.DB, repair *Repair) error
	PendingRepairs(ctx context.Context, db *gorm.DB, limit int) ([]Repair, error)
	MarkRepaired(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
