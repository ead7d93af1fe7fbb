package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, finance_id, customer_id, method, amount, notes, has_installments, installments_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.FinanceID,
		payment.CustomerID,
		payment.Method,
		payment.Amount,
		payment.Notes,
		payment.HasInstallments,
		payment.InstallmentsCount,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, finance_id, customer_id, method, amount, notes, has_installments, installments_count, created_at
		 FROM payments WHERE finance_id = ? ORDER BY created_at ASC, id ASC`,
		financeID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) DeleteByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM payments WHERE finance_id = ?`,
		financeID,
	)
	return result.RowsAffected, result.Error
}
