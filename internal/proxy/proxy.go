package proxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Nash0810/weightsel/internal/logging"
	"github.com/Nash0810/weightsel/internal/metrics"
	"github.com/Nash0810/weightsel/internal/retry"
)

// StatusClientClosedRequest is reported when the client cancels before a response
const StatusClientClosedRequest = 499

// Proxy forwards each request to the backend chosen by the router
type Proxy struct {
	router      *Router
	retryPolicy *retry.Policy      // nil disables retries
	timeout     time.Duration      // Per request timeout, 0 disables
	collector   *metrics.Collector // Prometheus metrics
	logger      *logging.Logger    // Structured logger
}

// NewProxy creates a new proxy instance
func NewProxy(router *Router, retryPolicy *retry.Policy, timeout time.Duration, collector *metrics.Collector, logger *logging.Logger) *Proxy {
	return &Proxy{
		router:      router,
		retryPolicy: retryPolicy,
		timeout:     timeout,
		collector:   collector,
		logger:      logger,
	}
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Generate request ID
	requestID := uuid.New().String()
	r.Header.Set("X-Request-ID", requestID)
	w.Header().Set("X-Request-ID", requestID)

	if p.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	// Buffer request body for potential retries
	var bodyBytes []byte
	maxAttempts := 1
	if p.retryPolicy != nil {
		var err error
		bodyBytes, err = retry.BufferRequestBody(r)
		if err != nil {
			p.logger.Error("failed_to_buffer_body",
				"request_id", requestID,
				"error", err.Error())
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		p.retryPolicy.GetBudget().TrackRequest()
		maxAttempts = p.retryPolicy.MaxAttempts()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := r.Context().Err(); err != nil {
			p.abandon(w, requestID, err)
			return
		}

		up, strategy, err := p.router.pick()
		if err != nil {
			if p.collector != nil {
				p.collector.SelectionErrorsTotal.WithLabelValues(strategy).Inc()
			}
			p.logger.Error("backend_selection_failed",
				"request_id", requestID,
				"strategy", strategy,
				"error", err.Error())
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		backendHost := up.url.Host
		if p.collector != nil {
			p.collector.SelectionsTotal.WithLabelValues(strategy, backendHost).Inc()
		}

		p.logger.Debug("routing_request",
			"request_id", requestID,
			"backend", backendHost,
			"attempt", attempt,
			"method", r.Method,
			"path", r.URL.Path)

		if attempt > 1 {
			retry.RestoreRequestBody(r, bodyBytes)
		}

		proxyErr := p.forward(w, r, up)
		if proxyErr == nil {
			return
		}

		p.logger.Warn("forward_failed",
			"request_id", requestID,
			"backend", backendHost,
			"attempt", attempt,
			"error", proxyErr.Error())

		if p.retryPolicy != nil && p.retryPolicy.ShouldRetry(r, proxyErr, attempt) {
			if p.collector != nil {
				p.collector.RetriesTotal.WithLabelValues("transport_error").Inc()
			}
			continue
		}

		if err := r.Context().Err(); err != nil {
			p.abandon(w, requestID, err)
			return
		}
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	// Every attempt was retried away
	http.Error(w, "Bad Gateway", http.StatusBadGateway)
}

// abandon answers a request whose context ended before a backend responded
func (p *Proxy) abandon(w http.ResponseWriter, requestID string, err error) {
	p.logger.Warn("request_abandoned", "request_id", requestID, "error", err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		http.Error(w, "Gateway Timeout", http.StatusGatewayTimeout)
		return
	}
	http.Error(w, "Request Canceled", StatusClientClosedRequest)
}

// forward proxies one attempt to up and records its metrics
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, up *upstream) error {
	backendHost := up.url.Host
	startTime := time.Now()

	if p.collector != nil {
		p.collector.ActiveRequests.WithLabelValues(backendHost).Inc()
		defer p.collector.ActiveRequests.WithLabelValues(backendHost).Dec()
	}

	crw := metrics.NewCaptureResponseWriter(w)
	err := up.forward(crw, r)

	duration := time.Since(startTime).Seconds()
	status := crw.StatusCode()
	if err != nil {
		status = http.StatusBadGateway
	}

	if p.collector != nil {
		p.collector.RequestsTotal.WithLabelValues(backendHost, r.Method, strconv.Itoa(status)).Inc()
		p.collector.RequestDuration.WithLabelValues(backendHost, r.Method).Observe(duration)
	}

	if err == nil {
		p.logger.Debug("request_completed",
			"backend", backendHost,
			"status", status,
			"duration_ms", duration*1000)
	}
	return err
}
