package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/finance/domain"
	"github.com/clinvia/clinvia/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const financeColumns = `id, customer_id, items, total, paid, balance, status, credits_granted,
	legacy_payments, schema_version, version, created_at, updated_at`

func (r *repo) InsertBoth(ctx context.Context, db *gorm.DB, finance *domain.Finance) error {
	for _, table := range []string{domain.TableGlobal, domain.TableCustomerCopy} {
		if err := r.InsertCopy(ctx, db, table, finance); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertCopy(ctx context.Context, db *gorm.DB, table string, finance *domain.Finance) error {
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, financeColumns),
		finance.ID,
		finance.CustomerID,
		finance.Items,
		finance.Total,
		finance.Paid,
		finance.Balance,
		finance.Status,
		finance.CreditsGranted,
		finance.LegacyPayments,
		finance.SchemaVersion,
		finance.Version,
		finance.CreatedAt,
		finance.UpdatedAt,
	).Error
}

func (r *repo) FindInTable(ctx context.Context, db *gorm.DB, table string, id snowflake.ID) (*domain.Finance, error) {
	var finance domain.Finance
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, financeColumns, table),
		id,
	).Scan(&finance).Error
	if err != nil {
		return nil, err
	}
	if finance.ID == 0 {
		return nil, nil
	}
	return &finance, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.Finance, error) {
	var finances []domain.Finance
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s FROM %s WHERE customer_id = ? ORDER BY created_at DESC, id DESC`,
			financeColumns, domain.TableCustomerCopy),
		customerID,
	).Scan(&finances).Error
	if err != nil {
		return nil, err
	}
	return finances, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFinanceFilter, page pagination.Pagination) ([]*domain.Finance, error) {
	var finances []*domain.Finance
	stmt := db.WithContext(ctx).Table(domain.TableGlobal)
	if filter.Search != "" {
		// Items are searched as text so service names match on every dialect;
		// an exact customer id selects that customer's finances.
		stmt = stmt.Where("CAST(items AS TEXT) LIKE ? OR CAST(customer_id AS TEXT) = ?",
			"%"+filter.Search+"%", filter.Search)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.DateTo)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		// Typed (created_at, id) row cursor: the id breaks ties between rows
		// created in the same instant.
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, id)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&finances).Error
	if err != nil {
		return nil, err
	}
	return finances, nil
}

func (r *repo) UpdateSettlementCAS(ctx context.Context, db *gorm.DB, table string, id snowflake.ID, readVersion int, paid, balance decimal.Decimal, status domain.Status) (int64, error) {
	result := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s
		 SET paid = ?, balance = ?, status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`, table),
		paid,
		balance,
		status,
		id,
		readVersion,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CopySettlement(ctx context.Context, db *gorm.DB, table string, source *domain.Finance) (int64, error) {
	result := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s
		 SET paid = ?, balance = ?, status = ?, version = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, table),
		source.Paid,
		source.Balance,
		source.Status,
		source.Version,
		source.ID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteFromTable(ctx context.Context, db *gorm.DB, table string, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table),
		id,
	).Error
}

func (r *repo) InsertRepair(ctx context.Context, db *gorm.DB, repair *domain.Repair) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO finance_repairs (id, finance_id, missing_copy, created_at)
		 VALUES (?, ?, ?, ?)`,
		repair.ID,
		repair.FinanceID,
		repair.MissingCopy,
		repair.CreatedAt,
	).Error
}

func (r *repo) PendingRepairs(ctx context.Context, db *gorm.DB, limit int) ([]domain.Repair, error) {
	if limit <= 0 {
		limit = 100
	}
	var repairs []domain.Repair
	err := db.WithContext(ctx).Raw(
		`SELECT id, finance_id, missing_copy, created_at, repaired_at
		 FROM finance_repairs
		 WHERE repaired_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT ?`,
		limit,
	).Scan(&repairs).Error
	if err != nil {
		return nil, err
	}
	return repairs, nil
}

func (r *repo) MarkRepaired(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE finance_repairs SET repaired_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
