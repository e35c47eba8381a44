package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/database"
	redisAdapter "github.com/selivandex/market-insights/internal/adapters/redis"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// IngestRunner triggers one ingestion pass on demand
type IngestRunner interface {
	Run(ctx context.Context) (models.RunStats, error)
}

// DailyRunner triggers daily aggregation for a specific day
type DailyRunner interface {
	AggregateDay(ctx context.Context, day time.Time) error
}

// RealtimeRunner triggers a rolling gauge recompute
type RealtimeRunner interface {
	Run(ctx context.Context) error
}

// MarketData serves the cached market snapshot
type MarketData interface {
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// Researcher answers free-form market questions with structured briefs
type Researcher interface {
	Research(ctx context.Context, question string) (*models.ResearchBrief, error)
}

// SentimentReader serves persisted aggregates
type SentimentReader interface {
	GetRealtime(ctx context.Context) (*models.RealtimeSentimentRecord, error)
	GetDaily(ctx context.Context, date string) (*models.DailyAnalyticsRecord, error)
}

// Server exposes the read API, manual run triggers, and K8s probes
type Server struct {
	server    *http.Server
	db        *database.DB
	redis     *redisAdapter.Client
	market    MarketData
	sentiment SentimentReader
	research  Researcher
	ingest    IngestRunner
	daily     DailyRunner
	realtime  RealtimeRunner
	ready     bool
	readyMu   sync.RWMutex
	startTime time.Time
}

// NewServer creates new API server
func NewServer(
	port string,
	db *database.DB,
	redis *redisAdapter.Client,
	market MarketData,
	sentiment SentimentReader,
	research Researcher,
	ingest IngestRunner,
	daily DailyRunner,
	realtime RealtimeRunner,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		db:        db,
		redis:     redis,
		market:    market,
		sentiment: sentiment,
		research:  research,
		ingest:    ingest,
		daily:     daily,
		realtime:  realtime,
		startTime: time.Now(),
	}

	mux.HandleFunc("/market-data", s.handleMarketData)
	mux.HandleFunc("/sentiment/current", s.handleCurrentSentiment)
	mux.HandleFunc("/sentiment/daily", s.handleDailySentiment)
	mux.HandleFunc("/ai/research", s.handleResearch)
	mux.HandleFunc("/run/ingest", s.handleRunIngest)
	mux.HandleFunc("/run/daily", s.handleRunDaily)
	mux.HandleFunc("/run/realtime", s.handleRunRealtime)

	// Health endpoints for K8s probes
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReadiness)

	return s
}

// Start starts the API server
func (s *Server) Start() error {
	logger.Info("api server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service as ready
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Kind:    kind,
		Error:   err.Error(),
	})
}
