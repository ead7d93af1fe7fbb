package server

import (
	"net/http"
	"strings"

	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	paymentdomain "github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type financeItemRequest struct {
	ServiceName string          `json:"service_name"`
	Price       decimal.Decimal `json:"price"`
}

type initialPaymentRequest struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Notes        string          `json:"notes"`
	Installments *struct {
		Count int `json:"count"`
	} `json:"installments"`
}

type createFinanceRequest struct {
	CustomerID     string                  `json:"customer_id"`
	Total          decimal.Decimal         `json:"total"`
	Items          []financeItemRequest    `json:"items"`
	CreditsGranted int                     `json:"credits_granted"`
	Payments       []initialPaymentRequest `json:"payments"`
}

type createFinanceResponse struct {
	Finance  financedomain.Finance                 `json:"finance"`
	Payments []paymentdomain.RecordPaymentResponse `json:"payments,omitempty"`
	Warnings []financedomain.Warning               `json:"warnings,omitempty"`
}

// CreateFinance creates the record and then applies any initial payments one
// by one. The finance itself is the unit of atomicity; a failing initial
// payment does not undo the finance or its siblings, it surfaces as a warning.
func (s *Server) CreateFinance(c *gin.Context) {
	var req createFinanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]financedomain.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, financedomain.Item{
			ServiceName: strings.TrimSpace(item.ServiceName),
			Price:       item.Price,
		})
	}

	finance, warnings, err := s.financeSvc.Create(c.Request.Context(), financedomain.CreateFinanceRequest{
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Total:          req.Total,
		Items:          items,
		CreditsGranted: req.CreditsGranted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := createFinanceResponse{Finance: finance, Warnings: warnings}
	for i, initial := range req.Payments {
		recordReq := paymentdomain.RecordPaymentRequest{
			FinanceID: finance.ID.String(),
			Method:    strings.TrimSpace(initial.Method),
			Amount:    initial.Amount,
			Notes:     strings.TrimSpace(initial.Notes),
		}
		if initial.Installments != nil {
			recordReq.Installments = &paymentdomain.InstallmentsSpec{Count: initial.Installments.Count}
		}

		recorded, err := s.paymentSvc.Record(c.Request.Context(), recordReq)
		if err != nil {
			s.log.Warn("initial payment failed",
				zap.String("finance_id", finance.ID.String()),
				zap.Int("payment_index", i),
				zap.Error(err),
			)
			resp.Warnings = append(resp.Warnings, financedomain.Warning{
				Code:      financedomain.WarnCascadeStep,
				Step:      "initial_payment",
				FinanceID: finance.ID,
				Detail:    err.Error(),
			})
			continue
		}
		resp.Payments = append(resp.Payments, recorded)
		resp.Warnings = append(resp.Warnings, recorded.Warnings...)
	}

	if len(resp.Payments) > 0 {
		refreshed, err := s.financeSvc.GetByID(c.Request.Context(), financedomain.GetFinanceRequest{ID: finance.ID.String()})
		if err == nil {
			resp.Finance = refreshed
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFinances(c *gin.Context) {
	var query struct {
		PageToken  string `form:"page_token"`
		PageSize   int    `form:"page_size"`
		CustomerID string `form:"customer_id"`
		Search     string `form:"search"`
		Status     string `form:"status"`
		DateFrom   string `form:"date_from"`
		DateTo     string `form:"date_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// Per-customer listings come from the customer copy, not the global index.
	if customerID := strings.TrimSpace(query.CustomerID); customerID != "" {
		finances, err := s.financeSvc.ListByCustomer(c.Request.Context(), customerID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"finances": finances}})
		return
	}

	dateFrom, err := parseOptionalTime(query.DateFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("date_from", "invalid_date_from", "invalid date_from"))
		return
	}
	dateTo, err := parseOptionalTime(query.DateTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("date_to", "invalid_date_to", "invalid date_to"))
		return
	}

	resp, err := s.financeSvc.List(c.Request.Context(), financedomain.ListFinanceRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Search:    strings.TrimSpace(query.Search),
		Status:    strings.TrimSpace(query.Status),
		DateFrom:  dateFrom,
		DateTo:    dateTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFinanceByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.financeSvc.GetByID(c.Request.Context(), financedomain.GetFinanceRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteFinance(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	warnings, err := s.financeSvc.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"deleted":  true,
		"warnings": warnings,
	}})
}
