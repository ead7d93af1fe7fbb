package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) ([]Payment, error)
	DeleteByFinance(ctx context.Context, db *gorm.DB, financeID snowflake.ID) (int64, error)
}
