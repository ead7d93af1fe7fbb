package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment methods. The names are kept in Portuguese because they are part of
// the stored data and the public API contract.
const (
	MethodDinheiro      = "dinheiro"
	MethodCredito       = "credito"
	MethodDebito        = "debito"
	MethodPix           = "pix"
	MethodTransferencia = "transferencia"
	MethodBoleto        = "boleto"
	MethodOutro         = "outro"
)

// KnownMethods lists every accepted payment method.
var KnownMethods = []string{
	MethodDinheiro,
	MethodCredito,
	MethodDebito,
	MethodPix,
	MethodTransferencia,
	MethodBoleto,
	MethodOutro,
}

// MethodFromLegacyCode maps the pre-migration numeric method encoding.
// Anything outside the table collapses to outro.
func MethodFromLegacyCode(code int) string {
	switch code {
	case 1:
		return MethodDinheiro
	case 2:
		return MethodCredito
	case 3:
		return MethodDebito
	case 4:
		return MethodPix
	case 5:
		return MethodTransferencia
	default:
		return MethodOutro
	}
}

// Payment is a registered payment event applied against a finance's balance.
// Rows are immutable once created.
type Payment struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	FinanceID         snowflake.ID    `gorm:"not null;index" json:"finance_id"`
	CustomerID        snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Method            string          `gorm:"type:text;not null" json:"method"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Notes             string          `gorm:"not null;default:''" json:"notes,omitempty"`
	HasInstallments   bool            `gorm:"not null;default:false" json:"has_installments"`
	InstallmentsCount *int            `json:"installments_count,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// LegacyIDPrefix tags synthetic payments materialized from a finance's
// embedded legacy array. The marker is never persisted.
const LegacyIDPrefix = "legacy:"

// View is the API shape of a payment. Stored rows carry their snowflake id;
// legacy payments carry a prefixed synthetic id so callers can tell them
// apart.
type View struct {
	ID                string          `json:"id"`
	FinanceID         string          `json:"finance_id"`
	CustomerID        string          `json:"customer_id"`
	Method            string          `json:"method"`
	Amount            decimal.Decimal `json:"amount"`
	Notes             string          `json:"notes,omitempty"`
	HasInstallments   bool            `json:"has_installments"`
	InstallmentsCount *int            `json:"installments_count,omitempty"`
	Legacy            bool            `json:"legacy"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ViewOf converts a stored payment row.
func ViewOf(p Payment) View {
	return View{
		ID:                p.ID.String(),
		FinanceID:         p.FinanceID.String(),
		CustomerID:        p.CustomerID.String(),
		Method:            p.Method,
		Amount:            p.Amount,
		Notes:             p.Notes,
		HasInstallments:   p.HasInstallments,
		InstallmentsCount: p.InstallmentsCount,
		CreatedAt:         p.CreatedAt,
	}
}
