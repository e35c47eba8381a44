package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/ai"
	"github.com/selivandex/market-insights/pkg/logger"
)

// handleMarketData serves the cached market snapshot. Stale data is
// still a 200 with the stale marker in the body; 503 means neither the
// vendor nor the cache could produce anything.
func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := s.market.Snapshot(r.Context())
	if err != nil {
		logger.Error("market data unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "upstream", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleCurrentSentiment serves the rolling sentiment gauge
func (s *Server) handleCurrentSentiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	record, err := s.sentiment.GetRealtime(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store", err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "store", fmt.Errorf("no sentiment gauge computed yet"))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleDailySentiment serves one day's aggregate, ?date=YYYY-MM-DD
func (s *Server) handleDailySentiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid date %q, want YYYY-MM-DD", date))
		return
	}

	record, err := s.sentiment.GetDaily(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store", err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "store", fmt.Errorf("no record for %s", date))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleResearch answers a free-form market question with a structured
// brief. A question is required; an unparseable model response maps to
// 502 so callers can tell an upstream quality problem from our own
// failures.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid request body: %w", err))
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("missing 'question'"))
		return
	}

	brief, err := s.research.Research(r.Context(), question)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedPayload) {
			writeError(w, http.StatusBadGateway, "payload", fmt.Errorf("research response malformed"))
			return
		}
		writeError(w, http.StatusInternalServerError, "upstream", err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

// handleRunIngest triggers one ingestion pass synchronously
func (s *Server) handleRunIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.ingest.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleRunDaily triggers daily aggregation, ?date=YYYY-MM-DD defaults
// to yesterday
func (s *Server) handleRunDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day := time.Now().UTC().AddDate(0, 0, -1)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw))
			return
		}
		day = parsed
	}

	if err := s.daily.AggregateDay(r.Context(), day); err != nil {
		writeError(w, http.StatusInternalServerError, "analytics", err)
		return
	}

	record, err := s.sentiment.GetDaily(r.Context(), day.Format("2006-01-02"))
	if err != nil || record == nil {
		if err != nil {
			logger.Warn("failed to read back daily record after aggregation",
				zap.String("date", day.Format("2006-01-02")),
				zap.Error(err),
			)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleRunRealtime triggers a rolling gauge recompute
func (s *Server) handleRunRealtime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.realtime.Run(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "analytics", err)
		return
	}

	record, err := s.sentiment.GetRealtime(r.Context())
	if err != nil || record == nil {
		if err != nil {
			logger.Warn("failed to read back gauge after recompute", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// healthStatus represents system health
type healthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth handles liveness probe - /health
// Returns 200 if process is alive (even if dependencies are down)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	writeJSON(w, http.StatusOK, status)
}

// readinessStatus represents system readiness
type readinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleReadiness handles readiness probe - /ready
// Returns 200 only when dependencies answer
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := s.isReady()

	if err := s.db.Health(); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if err := s.redis.Health(); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	status := readinessStatus{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
