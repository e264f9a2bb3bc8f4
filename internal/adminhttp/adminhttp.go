// Package adminhttp exposes a small gin-backed HTTP surface for
// operators: liveness, the current main snapshot, and broker stats.
// It reads only from the shared state the evaluator already owns —
// it never mutates ensemble state.
package adminhttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/equinor/faster-ee/internal/buildinfo"
	"github.com/equinor/faster-ee/internal/snapshot"
	"github.com/equinor/faster-ee/internal/state"
)

// StateSource provides read access to the evaluator's shared state
// and readiness flag. *evaluator.EE satisfies this.
type StateSource interface {
	State() *state.State
	Ready() bool
}

// Server wraps a gin engine and http.Server for the admin surface.
type Server struct {
	logger *slog.Logger
	source StateSource
	engine *gin.Engine
	srv    *http.Server
}

// New builds a Server bound to addr, reading from source. The
// returned Server is not listening until Start is called.
func New(logger *slog.Logger, addr string, source StateSource) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{logger: logger, source: source, engine: engine}
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/snapshot", s.handleSnapshot)
	engine.GET("/stats", s.handleStats)

	s.srv = &http.Server{Addr: addr, Handler: engine}
	return s
}

// Start begins serving in the background. Bind errors other than
// http.ErrServerClosed are logged; the admin surface is advisory and
// never blocks broker startup.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin http server failed", "error", err)
		}
	}()
}

// Stop shuts the admin server down within ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	if !s.source.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	st := s.source.State()
	c.JSON(http.StatusOK, gin.H{
		"ensemble_id": st.EnsembleID(),
		"status":      st.Status(),
		"snapshot":    snapshot.ToWire(st.Main().Sync()),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.source.State()
	c.JSON(http.StatusOK, gin.H{
		"ensemble_id":      st.EnsembleID(),
		"status":           st.Status(),
		"realization_count": len(st.Main().Realizations),
		"uptime":           buildinfo.Uptime().String(),
		"build":            buildinfo.BuildInfo(),
		"checked_at":       time.Now().UTC().Format(time.RFC3339),
	})
}
