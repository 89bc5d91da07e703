package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"

	"github.com/Nash0810/weightsel/internal/backend"
	"github.com/Nash0810/weightsel/internal/balancer"
	"github.com/Nash0810/weightsel/internal/logging"
	"github.com/Nash0810/weightsel/internal/metrics"
)

// ErrNoRoutes is returned when no route table has been installed yet
var ErrNoRoutes = errors.New("proxy: no route table installed")

// upstream is a forwarding target for one backend of the selector
type upstream struct {
	url    *url.URL
	proxy  *httputil.ReverseProxy
	active atomic.Int64 // In-flight requests
}

// routeTable pairs a selector with upstreams stored at the same indices
type routeTable struct {
	selector  *balancer.Selector
	upstreams []*upstream
}

// Router holds the route table currently serving traffic.
// Tables are immutable; Rebuild builds a complete new table and swaps it in.
type Router struct {
	table     atomic.Pointer[routeTable]
	collector *metrics.Collector
	logger    *logging.Logger
}

// NewRouter creates a router without routes; call Rebuild before serving
func NewRouter(collector *metrics.Collector, logger *logging.Logger) *Router {
	return &Router{
		collector: collector,
		logger:    logger,
	}
}

// Rebuild builds a selector for backends and makes it the active route table.
// Backend values must be absolute URLs. On error the previous table keeps serving.
func (rt *Router) Rebuild(backends []backend.Backend, strategy string, layout balancer.Layout) error {
	table, err := rt.build(backends, strategy, layout)
	if err != nil {
		if rt.collector != nil {
			rt.collector.RebuildsTotal.WithLabelValues("failure").Inc()
		}
		rt.logger.Error("selector_rebuild_failed", "error", err.Error())
		return err
	}

	rt.table.Store(table)

	if rt.collector != nil {
		rt.collector.RebuildsTotal.WithLabelValues("success").Inc()
	}
	rt.logger.Info("selector_rebuilt",
		"backends", table.selector.Len(),
		"projection_length", table.selector.ProjectionLen(),
		"strategy", table.selector.Strategy(),
		"layout", table.selector.Layout())
	return nil
}

func (rt *Router) build(backends []backend.Backend, strategy string, layout balancer.Layout) (*routeTable, error) {
	algorithm, err := balancer.NewAlgorithm(strategy)
	if err != nil {
		return nil, err
	}

	selector, err := balancer.New(backends, algorithm, balancer.WithLayout(layout))
	if err != nil {
		return nil, err
	}

	// Reuse upstreams that survive the rebuild so in-flight counts stay accurate
	previous := make(map[string]*upstream)
	if old := rt.table.Load(); old != nil {
		for _, up := range old.upstreams {
			previous[up.url.String()] = up
		}
	}

	upstreams := make([]*upstream, selector.Len())
	for i, b := range selector.Backends() {
		u, err := url.Parse(b.Value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy: backend %d (%q) is not an absolute url", i, b.Value)
		}

		if up, ok := previous[u.String()]; ok {
			upstreams[i] = up
			continue
		}
		upstreams[i] = newUpstream(u)
	}

	return &routeTable{
		selector:  selector,
		upstreams: upstreams,
	}, nil
}

// Selector returns the selector currently serving traffic, or nil
func (rt *Router) Selector() *balancer.Selector {
	if table := rt.table.Load(); table != nil {
		return table.selector
	}
	return nil
}

// ActiveRequests returns the in-flight count for the backend with the given URL
func (rt *Router) ActiveRequests(backendURL string) int64 {
	table := rt.table.Load()
	if table == nil {
		return 0
	}
	for _, up := range table.upstreams {
		if up.url.String() == backendURL {
			return up.active.Load()
		}
	}
	return 0
}

// pick selects the upstream for the next request and the strategy that chose it
func (rt *Router) pick() (*upstream, string, error) {
	table := rt.table.Load()
	if table == nil {
		return nil, "", ErrNoRoutes
	}

	idx, err := table.selector.SelectIndex()
	if err != nil {
		return nil, table.selector.Strategy(), err
	}
	return table.upstreams[idx], table.selector.Strategy(), nil
}

// errSlotKey carries a per-attempt slot for transport errors
type errSlotKey struct{}

func newUpstream(u *url.URL) *upstream {
	rp := httputil.NewSingleHostReverseProxy(u)

	// Hand transport errors back to the caller instead of writing a 502,
	// so a failed attempt can still be retried on another backend
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if slot, ok := r.Context().Value(errSlotKey{}).(*error); ok {
			*slot = err
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}

	return &upstream{
		url:   u,
		proxy: rp,
	}
}

// forward sends r to the upstream and returns the transport error, if any.
// When an error is returned nothing has been written to w.
func (up *upstream) forward(w http.ResponseWriter, r *http.Request) error {
	var proxyErr error
	ctx := context.WithValue(r.Context(), errSlotKey{}, &proxyErr)

	up.active.Add(1)
	defer up.active.Add(-1)

	up.proxy.ServeHTTP(w, r.WithContext(ctx))
	return proxyErr
}
