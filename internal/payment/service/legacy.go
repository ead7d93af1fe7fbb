package service

import (
	"encoding/json"
	"fmt"
	"time"

	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	"github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// legacyEntry mirrors one element of the deprecated embedded payment array.
// method is the old numeric encoding; createdAt was stored either as a date
// string or as a raw epoch value depending on the writing client's version.
type legacyEntry struct {
	Method    int             `json:"method"`
	Valor     decimal.Decimal `json:"valor"`
	CreatedAt json.RawMessage `json:"createdAt"`
	Notes     string          `json:"notes"`
}

// legacyViews materializes the finance's embedded legacy payments as
// synthetic read-only views. Nothing is written back: the conversion is
// idempotent and re-runs on every read until the finance gains a normalized
// payment, which suppresses the legacy array entirely.
func (s *Service) legacyViews(finance financedomain.Finance) ([]domain.View, error) {
	if finance.SchemaVersion != financedomain.SchemaVersionLegacy || len(finance.LegacyPayments) == 0 {
		return []domain.View{}, nil
	}

	var entries []legacyEntry
	if err := json.Unmarshal(finance.LegacyPayments, &entries); err != nil {
		s.log.Warn("unreadable legacy payment array",
			zap.String("finance_id", finance.ID.String()),
			zap.Error(err),
		)
		return []domain.View{}, nil
	}

	views := make([]domain.View, 0, len(entries))
	for i, entry := range entries {
		views = append(views, domain.View{
			ID:              fmt.Sprintf("%s%s:%d", domain.LegacyIDPrefix, finance.ID.String(), i),
			FinanceID:       finance.ID.String(),
			CustomerID:      finance.CustomerID.String(),
			Method:          domain.MethodFromLegacyCode(entry.Method),
			Amount:          entry.Valor,
			Notes:           entry.Notes,
			HasInstallments: false,
			Legacy:          true,
			CreatedAt:       parseLegacyTime(entry.CreatedAt, finance.CreatedAt),
		})
	}
	return views, nil
}

// parseLegacyTime normalizes the mixed createdAt representations found in
// legacy arrays: RFC3339 or plain-date strings, or unix epochs in seconds or
// milliseconds. Unparseable values fall back to the finance's own creation
// time rather than dropping the payment.
func parseLegacyTime(raw json.RawMessage, fallback time.Time) time.Time {
	if len(raw) == 0 {
		return fallback
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, asString); err == nil {
				return parsed.UTC()
			}
		}
		return fallback
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		epoch := int64(asNumber)
		// Millisecond epochs passed 1e12 back in 2001; second epochs will
		// not reach it for millennia.
		if epoch > 1_000_000_000_000 {
			return time.UnixMilli(epoch).UTC()
		}
		return time.Unix(epoch, 0).UTC()
	}

	return fallback
}
