package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	customerdomain "github.com/clinvia/clinvia/internal/customer/domain"
	"github.com/clinvia/clinvia/internal/livefeed"
	"github.com/gin-gonic/gin"
)

// StreamCustomerFeed serves the customer's live ledger snapshots over SSE.
// Subscribers get the buffered backlog first, then every snapshot published
// after a committed write.
func (s *Server) StreamCustomerFeed(c *gin.Context) {
	if s.feed == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	customerID := strings.TrimSpace(c.Param("id"))
	if customerID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{ID: customerID})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.feed.Subscribe(customer.ID.String())
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	for _, event := range backlog {
		if err := writeFeedEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writeFeedEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFeedEvent(w io.Writer, event livefeed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
	return err
}
