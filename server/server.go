// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"teralink/internal"
	"teralink/utils"
)

const (
	// ServiceName is reported by the info endpoint
	ServiceName = "TeraBox Link Resolver"
	// Version of the service
	Version = "v1.0.0"

	shutdownTimeout = 10 * time.Second
)

// Server serves the resolve API
type Server struct {
	config    *internal.Config
	resolver  internal.LinkResolver
	validator *utils.URLValidator
	engine    *gin.Engine
}

// NewServer creates a server backed by resolver
func NewServer(config *internal.Config, resolver internal.LinkResolver) *Server {
	if config.EnableDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    config,
		resolver:  resolver,
		validator: utils.NewURLValidator(config.AllowedDomains),
	}
	s.engine = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	engine := gin.New()
	engine.Use(requestID(), accessLog(), gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/", s.handleInfo)
	engine.GET("/api", s.handleResolve)

	return engine
}

// Handler returns the routed handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on config.Listen until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		internal.LogInfo("Listening on %s", s.config.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	internal.LogInfo("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
