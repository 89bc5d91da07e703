package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/Nash0810/weightsel/internal/balancer"
	"github.com/Nash0810/weightsel/internal/retry"
)

// SelectorSource provides the selector currently serving traffic
type SelectorSource interface {
	Selector() *balancer.Selector
}

// Exporter periodically updates metrics from system state
type Exporter struct {
	collector   *Collector
	source      SelectorSource
	retryBudget *retry.Budget
	interval    time.Duration
	mu          sync.Mutex // Keeps Reset and the following Sets of one export together
}

// NewExporter creates a new metrics exporter; retryBudget may be nil
func NewExporter(collector *Collector, source SelectorSource, retryBudget *retry.Budget) *Exporter {
	return &Exporter{
		collector:   collector,
		source:      source,
		retryBudget: retryBudget,
		interval:    5 * time.Second,
	}
}

// Start begins the metrics export loop
func (e *Exporter) Start(ctx context.Context) {
	e.Export()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Export()
		}
	}
}

// Export updates all gauge metrics
func (e *Exporter) Export() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sel := e.source.Selector(); sel != nil {
		// Drop series for backends removed by a rebuild
		e.collector.BackendWeight.Reset()
		e.collector.BackendShare.Reset()

		total := float64(sel.TotalWeight())
		for _, b := range sel.Backends() {
			e.collector.BackendWeight.WithLabelValues(b.Value).Set(float64(b.Weight))
			e.collector.BackendShare.WithLabelValues(b.Value).Set(float64(b.Weight) / total)
		}
		e.collector.ProjectionLength.Set(float64(sel.ProjectionLen()))
	}

	// Retry budget
	if e.retryBudget != nil {
		e.collector.RetryBudgetTokens.Set(float64(e.retryBudget.GetAvailable()))
	}
}
