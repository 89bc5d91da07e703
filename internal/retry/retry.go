package retry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/Nash0810/weightsel/internal/logging"
)

// Policy determines whether a failed forward should be retried on another backend
type Policy struct {
	maxAttempts int
	budget      *Budget
	logger      *logging.Logger
}

// NewPolicy creates a new retry policy
func NewPolicy(maxAttempts int, budgetPercent int, logger *logging.Logger) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		maxAttempts: maxAttempts,
		budget:      NewBudget(budgetPercent),
		logger:      logger,
	}
}

// MaxAttempts returns the total attempts allowed per request
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry determines if a request should be retried after attempt failed with err
func (p *Policy) ShouldRetry(req *http.Request, err error, attempt int) bool {
	// Client went away, nothing to retry for
	if req.Context().Err() != nil {
		p.logger.Debug("retry_skipped", "reason", "context_canceled")
		return false
	}

	// Check attempt limit
	if attempt >= p.maxAttempts {
		p.logger.Debug("retry_skipped", "reason", "max_attempts", "max_attempts", p.maxAttempts)
		return false
	}

	// Check if method is idempotent
	if !isIdempotent(req.Method) {
		p.logger.Debug("retry_skipped", "reason", "not_idempotent", "method", req.Method)
		return false
	}

	if err == nil || !isRetryableError(err) {
		return false
	}

	// Check retry budget
	if !p.budget.TryConsume() {
		p.logger.Warn("retry_budget_exhausted", "available", p.budget.GetAvailable())
		return false
	}

	p.logger.Debug("retry_allowed", "attempt", attempt+1, "max_attempts", p.maxAttempts)
	return true
}

// GetBudget returns the budget for metrics tracking
func (p *Policy) GetBudget() *Budget {
	return p.budget
}

// isIdempotent returns true if HTTP method is safe to retry
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false // POST and PATCH are not idempotent by default
	}
}

// isRetryableError returns true if error indicates connection failure
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Fall back to message matching for wrapped transport errors
	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no route to host",
		"i/o timeout",
	}
	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// BufferRequestBody reads and buffers the request body for potential retries
func BufferRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()

	RestoreRequestBody(req, bodyBytes)
	return bodyBytes, nil
}

// RestoreRequestBody restores the buffered body to the request
func RestoreRequestBody(req *http.Request, bodyBytes []byte) {
	if bodyBytes != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}
}
