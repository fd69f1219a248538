// Package stats serves pool counters and liveness over HTTP.
package stats

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

// Source reports the current counters.
type Source interface {
	Stats() protocol.Stats
}

// Server is the stats HTTP endpoint. It starts out not ready.
type Server struct {
	server *http.Server
	source Source
	ready  atomic.Bool
}

// New returns a Server for addr reading from source.
func New(addr string, source Source) *Server {
	s := &Server{source: source}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/stats", s.handleStats)

	return r
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		glog.Infof("stats server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("stats server: %v", err)
		}
	}()
}

// Stop shuts the listener down, waiting for in-flight requests up to ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.ready.Load() {
		c.String(http.StatusServiceUnavailable, "not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Stats())
}
