package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	applog "fintrack/internal/log"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Bytes("text/plain; charset=utf-8", []byte("ok")).Write(w)
}

// handleReady probes the ledger's backing store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness probe failed", applog.FieldError, err)
		NewJSONResponse().
			Status(http.StatusServiceUnavailable).
			Bytes("text/plain; charset=utf-8", []byte("storage unavailable")).
			Write(w)
		return
	}
	NewJSONResponse().Bytes("text/plain; charset=utf-8", []byte("ready")).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.trace.Metrics()
	rl := s.limiter.Metrics()
	loading := 0
	if s.advisor.Loading() {
		loading = 1
	}

	var b strings.Builder
	metric := func(name, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n%s %v\n", name, help, name, value)
	}
	metric("fintrack_http_requests_total", "HTTP requests served.", tm.TotalRequests)
	metric("fintrack_http_server_errors_total", "HTTP responses with a 5xx status.", tm.ServerErrors)
	metric("fintrack_http_avg_response_seconds", "Mean response time.", tm.AverageResponseTime.Seconds())
	metric("fintrack_ratelimit_rejected_total", "Requests rejected by the rate limiter.", rl.Rejected)
	metric("fintrack_ratelimit_clients", "Clients tracked by the rate limiter.", rl.ClientCount)
	metric("fintrack_security_suspicious_total", "Requests flagged as suspicious.", s.detector.SuspiciousRequests())
	metric("fintrack_ledger_revision", "Ledger mutations since start.", s.ledger.Revision())
	metric("fintrack_ledger_transactions", "Transactions in the ledger.", len(s.txs.List()))
	metric("fintrack_chart_cache_entries", "Rendered charts held in cache.", s.chartLRU.Len())
	metric("fintrack_advice_loading", "1 while an advice request is in flight.", loading)

	NewJSONResponse().Bytes("text/plain; version=0.0.4; charset=utf-8", []byte(b.String())).Write(w)
}
