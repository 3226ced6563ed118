// Package metrics exposes Prometheus instruments and the health endpoint for
// the scalper. A dedicated HTTP server serves /metrics and /healthz so the
// dashboard port stays free of operational plumbing.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus instruments for the trading loop.
type Metrics struct {
	TicksTotal    prometheus.Counter
	CyclesTotal   prometheus.Counter
	SkippedCycles prometheus.Counter
	TradesTotal   *prometheus.CounterVec // labels: side
	OrderErrors   prometheus.Counter
	StoreErrors   prometheus.Counter
	CycleDur      prometheus.Histogram
	LastPrice     prometheus.Gauge
	CurrentRSI    prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus instruments.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_ticks_total",
			Help: "Total trade ticks fetched from the exchange",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_cycles_total",
			Help: "Total completed decision cycles",
		}),
		SkippedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_skipped_cycles_total",
			Help: "Cycles skipped because the tick fetch failed",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_trades_total",
			Help: "Trades booked in the local ledger (by side)",
		}, []string{"side"}),
		OrderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_order_errors_total",
			Help: "Order submissions rejected or failed after the local transition",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_store_errors_total",
			Help: "SQLite write or read failures",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalper_cycle_duration_seconds",
			Help:    "Wall-clock duration of one decision cycle",
			Buckets: prometheus.DefBuckets,
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_last_price",
			Help: "Most recent trade price observed",
		}),
		CurrentRSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_rsi",
			Help: "Current RSI value",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.CyclesTotal,
		m.SkippedCycles,
		m.TradesTotal,
		m.OrderErrors,
		m.StoreErrors,
		m.CycleDur,
		m.LastPrice,
		m.CurrentRSI,
	)

	return m
}

// HealthStatus tracks dependency liveness for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool
	RedisConnected bool
	RedisEnabled   bool

	SQLiteLatencyMs float64
	RedisLatencyMs  float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if db != nil {
					h.CheckSQLite(probeCtx, db)
				}
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if h.RedisEnabled && !h.RedisConnected {
		// Redis is an optional mirror; a lost connection degrades, not kills.
		overallStatus = "degraded"
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
