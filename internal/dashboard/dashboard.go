// Package dashboard serves a read-only Gin HTTP view over the queue: job
// list, worker list, and aggregate status (SPEC_FULL.md §12.1). The
// gin.New()+cors.New()+http.Server shape, including graceful
// context-bounded Shutdown, is grounded on
// cklxx-elephant.ai/internal/webui/server.go; the route surface itself is
// grounded on original_source/queuectl/web.py (minus its /simulate routes,
// which are out of scope here).
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/queuectl/queuectl/internal/engine"
	"github.com/queuectl/queuectl/internal/store"
)

// Store is the subset of store.Store the dashboard reads. It never mutates.
type Store interface {
	List(state engine.State, limit int) ([]*engine.Job, error)
	ListWorkers() ([]*engine.WorkerRegistration, error)
	CountsByState() (map[engine.State]int, error)
	ActiveWorkerCount(now time.Time, staleAfter time.Duration) (int, error)
	MetricsSnapshot(now time.Time) (store.MetricsSnapshot, error)
}

const activeWorkerStaleAfter = 90 * time.Second

// Server wraps a Gin engine and http.Server over a Store.
type Server struct {
	store      Store
	httpServer *http.Server
}

// NewServer builds the dashboard, binding routes "/", "/api/jobs",
// "/api/workers", "/api/status", and "/healthz", plus "/metrics" for
// Prometheus scraping.
func NewServer(addr string, store Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET"}
	engine.Use(cors.New(corsConfig))

	s := &Server{store: store}
	s.registerRoutes(engine)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/jobs", s.handleJobs)
	api.GET("/workers", s.handleWorkers)
	api.GET("/status", s.handleStatus)

	r.GET("/", s.handleIndex)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "queuectl",
		"routes":  []string{"/api/jobs", "/api/workers", "/api/status", "/healthz", "/metrics"},
	})
}

func (s *Server) handleJobs(c *gin.Context) {
	state := engine.State(c.Query("state"))
	limit := 50
	jobs, err := s.store.List(state, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleWorkers(c *gin.Context) {
	workers, err := s.store.ListWorkers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

func (s *Server) handleStatus(c *gin.Context) {
	now := time.Now()
	counts, err := s.store.CountsByState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	active, err := s.store.ActiveWorkerCount(now, activeWorkerStaleAfter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	snap, err := s.store.MetricsSnapshot(now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"counts_by_state":    counts,
		"active_workers":     active,
		"avg_duration_ms":    snap.AvgDurationMS,
		"completed_last_min": snap.CompletedLastMin,
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("dashboard listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
