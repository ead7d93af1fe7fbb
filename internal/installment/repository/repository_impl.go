package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/installment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const installmentColumns = `id, payment_id, finance_id, customer_id, installment_number, amount,
	due_date, status, paid_date, bank_transaction_id, created_at`

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, installments []domain.Installment) error {
	for i := range installments {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO installments (id, payment_id, finance_id, customer_id, installment_number, amount, due_date, status, paid_date, bank_transaction_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			installments[i].ID,
			installments[i].PaymentID,
			installments[i].FinanceID,
			installments[i].CustomerID,
			installments[i].InstallmentNumber,
			installments[i].Amount,
			installments[i].DueDate,
			installments[i].Status,
			installments[i].PaidDate,
			installments[i].BankTransactionID,
			installments[i].CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Installment, error) {
	var installment domain.Installment
	err := db.WithContext(ctx).Raw(
		`SELECT `+installmentColumns+` FROM installments WHERE id = ?`,
		id,
	).Scan(&installment).Error
	if err != nil {
		return nil, err
	}
	if installment.ID == 0 {
		return nil, nil
	}
	return &installment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInstallmentFilter) ([]domain.Installment, error) {
	stmt := db.WithContext(ctx).Table("installments")
	if filter.PaymentID != 0 {
		stmt = stmt.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.FinanceID != 0 {
		stmt = stmt.Where("finance_id = ?", filter.FinanceID)
	}
	if filter.From != nil {
		stmt = stmt.Where("due_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("due_date <= ?", *filter.To)
	}

	var installments []domain.Installment
	err := stmt.
		Order("due_date asc, installment_number asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, paidDate *time.Time, bankTransactionID *string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE installments
		 SET status = ?, paid_date = ?, bank_transaction_id = ?
		 WHERE id = ?`,
		status,
		paidDate,
		bankTransactionID,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, methods []string) ([]domain.Installment, error) {
	stmt := db.WithContext(ctx).
		Table("installments AS i").
		Select("i.*").
		Where("i.status = ?", domain.StatusPending).
		Where("i.due_date < ?", cutoff)
	if len(methods) > 0 {
		stmt = stmt.
			Joins("JOIN payments p ON p.id = i.payment_id").
			Where("p.method IN ?", methods)
	}

	var installments []domain.Installment
	err := stmt.
		Order("i.due_date asc, i.id asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repo) DeleteByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM installments WHERE finance_id = ?`,
		financeID,
	)
	return result.RowsAffected, result.Error
}
