package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	paymentdomain "github.com/clinvia/clinvia/internal/payment/domain"
)

type fakeFinanceService struct {
	getErr   error
	getCalls int
}

func (f *fakeFinanceService) Create(ctx context.Context, req financedomain.CreateFinanceRequest) (financedomain.Finance, []financedomain.Warning, error) {
	_ = ctx
	_ = req
	return financedomain.Finance{}, nil, nil
}

func (f *fakeFinanceService) GetByID(ctx context.Context, req financedomain.GetFinanceRequest) (financedomain.Finance, error) {
	f.getCalls++
	_ = ctx
	_ = req
	return financedomain.Finance{}, f.getErr
}

func (f *fakeFinanceService) ListByCustomer(ctx context.Context, customerID string) ([]financedomain.Finance, error) {
	_ = ctx
	_ = customerID
	return nil, nil
}

func (f *fakeFinanceService) List(ctx context.Context, req financedomain.ListFinanceRequest) (financedomain.ListFinanceResponse, error) {
	_ = ctx
	_ = req
	return financedomain.ListFinanceResponse{}, nil
}

func (f *fakeFinanceService) ApplySettlement(ctx context.Context, tx *gorm.DB, financeID snowflake.ID, amount decimal.Decimal) (financedomain.Settlement, []financedomain.Warning, error) {
	_ = ctx
	_ = tx
	_ = financeID
	_ = amount
	return financedomain.Settlement{}, nil, nil
}

func (f *fakeFinanceService) Delete(ctx context.Context, id string) ([]financedomain.Warning, error) {
	_ = ctx
	_ = id
	return nil, nil
}

func (f *fakeFinanceService) PublishSnapshot(ctx context.Context, customerID snowflake.ID) {
	_ = ctx
	_ = customerID
}

func (f *fakeFinanceService) RepairPendingCopies(ctx context.Context) (int, error) {
	_ = ctx
	return 0, nil
}

type fakePaymentService struct {
	recordErr error
}

func (f *fakePaymentService) Record(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResponse, error) {
	_ = ctx
	_ = req
	return paymentdomain.RecordPaymentResponse{}, f.recordErr
}

func (f *fakePaymentService) ListByFinance(ctx context.Context, financeID string) ([]paymentdomain.View, error) {
	_ = ctx
	_ = financeID
	return nil, nil
}

func decodeErrorType(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Type
}

func TestGetFinanceHandlerMapsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	financeSvc := &fakeFinanceService{getErr: financedomain.ErrNotFound}
	srv := &Server{financeSvc: financeSvc}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/v1/finances/:id", srv.GetFinanceByID)

	req := httptest.NewRequest(http.MethodGet, "/v1/finances/123", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if got := decodeErrorType(t, resp); got != "not_found" {
		t.Fatalf("expected error type not_found, got %q", got)
	}
	if financeSvc.getCalls != 1 {
		t.Fatalf("expected one service call, got %d", financeSvc.getCalls)
	}
}

func TestRecordPaymentHandlerMapsSettlementConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{paymentSvc: &fakePaymentService{recordErr: financedomain.ErrSettlementConflict}}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/finances/:id/payments", srv.RecordPayment)

	req := httptest.NewRequest(http.MethodPost, "/v1/finances/123/payments", bytes.NewBufferString(`{"method":"pix","amount":"50"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	if got := decodeErrorType(t, resp); got != "conflict" {
		t.Fatalf("expected error type conflict, got %q", got)
	}
}

func TestRecordPaymentHandlerMapsInconsistentState(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{paymentSvc: &fakePaymentService{recordErr: financedomain.ErrInconsistent}}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/finances/:id/payments", srv.RecordPayment)

	req := httptest.NewRequest(http.MethodPost, "/v1/finances/123/payments", bytes.NewBufferString(`{"method":"pix","amount":"50"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.Code)
	}
	if got := decodeErrorType(t, resp); got != "inconsistent_state" {
		t.Fatalf("expected error type inconsistent_state, got %q", got)
	}
}

func TestRecordPaymentHandlerMapsValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{paymentSvc: &fakePaymentService{recordErr: paymentdomain.ErrInvalidMethod}}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/v1/finances/:id/payments", srv.RecordPayment)

	req := httptest.NewRequest(http.MethodPost, "/v1/finances/123/payments", bytes.NewBufferString(`{"method":"cheque","amount":"50"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Type != "validation_error" {
		t.Fatalf("expected error type validation_error, got %q", body.Error.Type)
	}
	if len(body.Error.Errors) != 1 || body.Error.Errors[0].Code != "invalid_method" {
		t.Fatalf("unexpected validation errors: %+v", body.Error.Errors)
	}
}
