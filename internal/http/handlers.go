package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the backend and reports open budget sessions.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.backend == nil || s.budgets == nil:
		checks["backend"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	case s.ping == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ping(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if s.budgets != nil {
		checks["budget_sessions"] = s.budgets.Sessions().Size()
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	sessions := 0
	if s.budgets != nil {
		sessions = s.budgets.Sessions().Size()
	}

	fmt.Fprintf(w, "# HELP budgetd_http_requests_total Total HTTP requests\n")
	fmt.Fprintf(w, "budgetd_http_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# HELP budgetd_http_last_response_microseconds Duration of the last request\n")
	fmt.Fprintf(w, "budgetd_http_last_response_microseconds %d\n", traceMetrics.AverageResponseTime)
	fmt.Fprintf(w, "# HELP budgetd_rate_limit_hits_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "budgetd_rate_limit_hits_total %d\n", rateLimitMetrics.TotalHits)
	fmt.Fprintf(w, "budgetd_rate_limit_clients %d\n", rateLimitMetrics.ClientCount)
	fmt.Fprintf(w, "# HELP budgetd_suspicious_requests_total Requests rejected as probing\n")
	fmt.Fprintf(w, "budgetd_suspicious_requests_total %d\n", securityMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "# HELP budgetd_budget_sessions Open budget edit sessions\n")
	fmt.Fprintf(w, "budgetd_budget_sessions %d\n", sessions)
	fmt.Fprintf(w, "budgetd_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}
