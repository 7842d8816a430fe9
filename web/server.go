// Package web serves the engine over a JSON HTTP API: query execution,
// document upload and inspection, health, and metrics.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rlm-engine/config"
	"rlm-engine/cost"
	"rlm-engine/documents"
	"rlm-engine/domains"
	"rlm-engine/engine"
	"rlm-engine/store"
	"rlm-engine/web/middleware"
)

// QueryRunner is the orchestrator surface the server needs.
type QueryRunner interface {
	Run(ctx context.Context, question, document string) (engine.QueryResult, error)
	RunBatch(ctx context.Context, questions []string, document string) ([]engine.QueryResult, error)
}

type Server struct {
	router  *gin.Engine
	runner  QueryRunner
	docs    *documents.Registry
	ingest  *documents.Chain
	domains *domains.Registry
	archive *store.ResultStore // nil when no database is configured
	pricing cost.Table
	limiter *middleware.QueryRateLimiter
	logger  *zap.Logger
	config  *config.Config
}

func NewServer(runner QueryRunner, docs *documents.Registry, ingest *documents.Chain,
	domainReg *domains.Registry, archive *store.ResultStore,
	logger *zap.Logger, cfg *config.Config) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger))

	server := &Server{
		router:  router,
		runner:  runner,
		docs:    docs,
		ingest:  ingest,
		domains: domainReg,
		archive: archive,
		pricing: cost.DefaultTable(),
		logger:  logger,
		config:  cfg,
		limiter: middleware.NewQueryRateLimiter(middleware.RateLimiterConfig{
			QueriesPerMinute: cfg.RateLimitQueriesPerMin,
			BurstSize:        cfg.RateLimitBurstSize,
		}, logger),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.POST("/query", s.limiter.Middleware(), s.handleQuery)
		api.POST("/query/batch", s.limiter.Middleware(), s.handleBatchQuery)
		api.POST("/documents", s.handleUploadDocument)
		api.GET("/documents", s.handleListDocuments)
		api.GET("/documents/:id/detect", s.handleDetectDomain)
		api.GET("/results", s.handleListResults)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	s.limiter.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
