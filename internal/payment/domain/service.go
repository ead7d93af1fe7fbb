package domain

import (
	"context"
	"errors"

	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	"github.com/shopspring/decimal"
)

type InstallmentsSpec struct {
	Count int
}

type RecordPaymentRequest struct {
	FinanceID    string
	Method       string
	Amount       decimal.Decimal
	Notes        string
	Installments *InstallmentsSpec
}

type RecordPaymentResponse struct {
	Payment        View                     `json:"payment"`
	InstallmentIDs []string                 `json:"installment_ids,omitempty"`
	Settlement     financedomain.Settlement `json:"settlement"`
	Warnings       []financedomain.Warning  `json:"warnings,omitempty"`
}

type Service interface {
	// Record creates the payment, reconciles the finance settlement and, if
	// requested, schedules installments. The three run in one transaction:
	// a payment without a reconciled finance would violate the ledger
	// invariant, so none of it commits unless all of it does.
	Record(context.Context, RecordPaymentRequest) (RecordPaymentResponse, error)

	// ListByFinance returns the finance's normalized payments. When none
	// exist and the finance predates the normalized model, its embedded
	// legacy payments are materialized read-only; a single normalized row
	// suppresses the legacy array entirely.
	ListByFinance(ctx context.Context, financeID string) ([]View, error)
}

var (
	ErrInvalidFinanceID     = errors.New("invalid_finance_id")
	ErrInvalidMethod        = errors.New("invalid_method")
	ErrInvalidAmount        = errors.New("invalid_payment_amount")
	ErrMethodNotInstallable = errors.New("method_not_installable")
)
