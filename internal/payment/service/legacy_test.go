package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/shopspring/decimal"
)

func TestLegacyViewsConvertMixedEntries(t *testing.T) {
	env := setupPaymentService(t)
	ctx := context.Background()
	customerID := env.seedCustomer(t)

	// One string date, one millisecond epoch, one unknown method code.
	financeID := env.seedLegacyFinance(t, customerID, `[
		{"method":1,"valor":50,"createdAt":"2020-01-02"},
		{"method":4,"valor":25.5,"createdAt":1577923200000},
		{"method":9,"valor":10,"createdAt":"not a date"}
	]`)

	views, err := env.svc.ListByFinance(ctx, financeID.String())
	if err != nil {
		t.Fatalf("list legacy: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 legacy views, got %d", len(views))
	}

	first := views[0]
	if !first.Legacy {
		t.Fatalf("expected legacy flag on synthetic view")
	}
	if first.ID != domain.LegacyIDPrefix+financeID.String()+":0" {
		t.Fatalf("unexpected synthetic id %s", first.ID)
	}
	if first.Method != domain.MethodDinheiro {
		t.Fatalf("method code 1 should map to dinheiro, got %s", first.Method)
	}
	if !first.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50, got %s", first.Amount)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC); !first.CreatedAt.Equal(want) {
		t.Fatalf("expected %s, got %s", want, first.CreatedAt)
	}

	second := views[1]
	if second.Method != domain.MethodPix {
		t.Fatalf("method code 4 should map to pix, got %s", second.Method)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC); !second.CreatedAt.Equal(want) {
		t.Fatalf("millis epoch: expected %s, got %s", want, second.CreatedAt)
	}

	third := views[2]
	if third.Method != domain.MethodOutro {
		t.Fatalf("unknown code should map to outro, got %s", third.Method)
	}
	// Unparseable dates fall back to the finance's creation time.
	if !third.CreatedAt.Equal(env.clk.Now()) {
		t.Fatalf("expected fallback creation time, got %s", third.CreatedAt)
	}
}

func TestLegacyViewsIdempotent(t *testing.T) {
	env := setupPaymentService(t)
	ctx := context.Background()
	customerID := env.seedCustomer(t)
	financeID := env.seedLegacyFinance(t, customerID, `[{"method":2,"valor":30,"createdAt":1577923200}]`)

	first, err := env.svc.ListByFinance(ctx, financeID.String())
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := env.svc.ListByFinance(ctx, financeID.String())
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("conversion not deterministic: %v vs %v", first, second)
	}

	// Nothing is written back.
	var count int
	if err := env.db.Raw(`SELECT COUNT(1) FROM payments`).Scan(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("legacy conversion must not persist rows, got %d", count)
	}
}

func TestLegacyViewsUnreadableArray(t *testing.T) {
	env := setupPaymentService(t)
	ctx := context.Background()
	customerID := env.seedCustomer(t)
	financeID := env.seedLegacyFinance(t, customerID, `{"oops":true}`)

	views, err := env.svc.ListByFinance(ctx, financeID.String())
	if err != nil {
		t.Fatalf("list unreadable: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected empty views for unreadable array, got %v", views)
	}
}

func TestParseLegacyTime(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2020-06-01T10:30:00Z"`, time.Date(2020, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"datetime", `"2020-06-01 10:30:00"`, time.Date(2020, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"date only", `"2020-06-01"`, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch seconds", `1591007400`, time.Date(2020, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"epoch millis", `1591007400000`, time.Date(2020, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"garbage string", `"tomorrow"`, fallback},
		{"null", `null`, fallback},
		{"empty", ``, fallback},
	}

	for _, tc := range cases {
		got := parseLegacyTime(json.RawMessage(tc.raw), fallback)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
