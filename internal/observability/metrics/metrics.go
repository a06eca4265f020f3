// Package metrics exposes Prometheus collectors for tool calls and bookings.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// ToolMetrics counts MCP tool calls by tool and status.
type ToolMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

func NewToolMetrics(reg prometheus.Registerer, app string) *ToolMetrics {
	m := &ToolMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mcpapps",
			Subsystem:   "tools",
			Name:        "calls_total",
			Help:        "Total MCP tool calls",
			ConstLabels: prometheus.Labels{"app": app},
		}, []string{"tool", "status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "mcpapps",
			Subsystem:   "tools",
			Name:        "call_duration_seconds",
			Help:        "Latency of MCP tool calls",
			ConstLabels: prometheus.Labels{"app": app},
			Buckets:     prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callDuration)
	return m
}

func (m *ToolMetrics) ObserveCall(tool string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if isError {
		status = "error"
	}
	m.callsTotal.WithLabelValues(tool, status).Inc()
	m.callDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Middleware records every tool call passing through an mcpserver.Server.
func (m *ToolMetrics) Middleware() mcpserver.ToolMiddleware {
	return func(next mcpserver.ToolFunc) mcpserver.ToolFunc {
		return func(ctx context.Context, name string, args map[string]any) (*mcpserver.ToolCallResult, error) {
			start := time.Now()
			result, err := next(ctx, name, args)
			m.ObserveCall(name, err != nil || (result != nil && result.IsError), time.Since(start))
			return result, err
		}
	}
}

// BookingMetrics counts booking outcomes and orphaned slots.
type BookingMetrics struct {
	outcomesTotal *prometheus.CounterVec
	orphanedTotal prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapps",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		orphanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mcpapps",
			Subsystem: "scheduling",
			Name:      "orphaned_slots_total",
			Help:      "Slots marked unavailable whose booking insert failed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomesTotal, m.orphanedTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveOrphanedSlot() {
	if m == nil {
		return
	}
	m.orphanedTotal.Inc()
}

// Handler serves the metrics of g, or of the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
