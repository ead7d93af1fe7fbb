package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type recordPaymentRequest struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Notes        string          `json:"notes"`
	Installments *struct {
		Count int `json:"count"`
	} `json:"installments"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	recordReq := paymentdomain.RecordPaymentRequest{
		FinanceID: strings.TrimSpace(c.Param("id")),
		Method:    strings.TrimSpace(req.Method),
		Amount:    req.Amount,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if req.Installments != nil {
		recordReq.Installments = &paymentdomain.InstallmentsSpec{Count: req.Installments.Count}
	}

	resp, err := s.paymentSvc.Record(c.Request.Context(), recordReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFinancePayments(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.paymentSvc.ListByFinance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
