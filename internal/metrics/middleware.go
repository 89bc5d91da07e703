package metrics

import (
	"net/http"
	"strconv"
)

// Middleware wraps http.Handler to count inbound requests
type Middleware struct {
	collector *Collector
	next      http.Handler
}

// NewMiddleware creates metrics middleware
func NewMiddleware(collector *Collector, next http.Handler) *Middleware {
	return &Middleware{
		collector: collector,
		next:      next,
	}
}

// ServeHTTP implements http.Handler interface
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Wrap response writer to capture status code
	crw := NewCaptureResponseWriter(w)

	m.next.ServeHTTP(crw, r)

	m.collector.InboundTotal.WithLabelValues(r.Method, strconv.Itoa(crw.statusCode)).Inc()
}

// CaptureResponseWriter captures HTTP status code
type CaptureResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// NewCaptureResponseWriter wraps w, reporting 200 until a status is written
func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written
func (crw *CaptureResponseWriter) WriteHeader(code int) {
	if !crw.wroteHeader {
		crw.statusCode = code
		crw.wroteHeader = true
	}
	crw.ResponseWriter.WriteHeader(code)
}

// StatusCode returns the captured status code
func (crw *CaptureResponseWriter) StatusCode() int {
	return crw.statusCode
}

// Unwrap exposes the underlying writer to http.ResponseController
func (crw *CaptureResponseWriter) Unwrap() http.ResponseWriter {
	return crw.ResponseWriter
}
