package server

import (
	"net/http"
	"strings"
	"time"

	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListInstallments(c *gin.Context) {
	var query struct {
		PaymentID string `form:"payment_id"`
		FinanceID string `form:"finance_id"`
		From      string `form:"from"`
		To        string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.installmentSvc.List(c.Request.Context(), installmentdomain.ListInstallmentRequest{
		PaymentID: strings.TrimSpace(query.PaymentID),
		FinanceID: strings.TrimSpace(query.FinanceID),
		From:      from,
		To:        to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateInstallmentRequest struct {
	Status            string  `json:"status"`
	PaidDate          *string `json:"paid_date"`
	BankTransactionID *string `json:"bank_transaction_id"`
}

func (s *Server) UpdateInstallmentStatus(c *gin.Context) {
	var req updateInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var paidDate *time.Time
	if req.PaidDate != nil {
		parsed, err := parseOptionalTime(*req.PaidDate, false)
		if err != nil {
			AbortWithError(c, newValidationError("paid_date", "invalid_paid_date", "invalid paid_date"))
			return
		}
		paidDate = parsed
	}

	resp, err := s.installmentSvc.UpdateStatus(c.Request.Context(), installmentdomain.UpdateStatusRequest{
		ID:                strings.TrimSpace(c.Param("id")),
		Status:            installmentdomain.Status(strings.TrimSpace(req.Status)),
		PaidDate:          paidDate,
		BankTransactionID: req.BankTransactionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOverdueInstallments(c *gin.Context) {
	graceDays, methods, err := s.overdueParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.installmentSvc.FindOverdue(c.Request.Context(), graceDays, methods)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOverdueByCustomer(c *gin.Context) {
	graceDays, methods, err := s.overdueParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.installmentSvc.GroupOverdueByCustomer(c.Request.Context(), graceDays, methods)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// overdueParams resolves grace_days and methods query overrides, falling back
// to the configured collection defaults.
func (s *Server) overdueParams(c *gin.Context) (int, []string, error) {
	graceDays := -1
	if parsed, err := parseOptionalInt(c.Query("grace_days")); err != nil {
		return 0, nil, newValidationError("grace_days", "invalid_grace_days", "invalid grace_days")
	} else if parsed != nil {
		if *parsed < 0 {
			return 0, nil, newValidationError("grace_days", "invalid_grace_days", "invalid grace_days")
		}
		graceDays = *parsed
	}

	methods := s.cfg.Ledger.TrackableMethods
	if raw := strings.TrimSpace(c.Query("methods")); raw != "" {
		methods = nil
		for _, m := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(m); trimmed != "" {
				methods = append(methods, trimmed)
			}
		}
	}
	return graceDays, methods, nil
}
