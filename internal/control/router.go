// ABOUTME: gin router and HTTP server for the control API
// ABOUTME: Route table, request metrics middleware and lifecycle
package control

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sendspin/mixbus/internal/metrics"
)

// SetupRouter creates and configures the gin router. httpMetrics and
// metricsHandler may be nil.
func SetupRouter(api *API, httpMetrics *metrics.HTTP, metricsHandler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	if httpMetrics != nil {
		r.Use(metricsMiddleware(httpMetrics))
	}

	r.GET("/health", api.Health)

	r.GET("/streams", api.ListStreams)
	r.POST("/streams", api.AddStream)

	stream := r.Group("/streams/:id")
	{
		stream.GET("", api.GetStream)
		stream.DELETE("", api.RemoveStream)
		stream.POST("/pause", api.Pause)
		stream.POST("/resume", api.Resume)
		stream.POST("/stop", api.Stop)
		stream.POST("/fade-out", api.FadeOut)
		stream.POST("/fade-in", api.FadeIn)
		stream.POST("/volume", api.SetVolume)
	}

	r.POST("/crossfade", api.Crossfade)

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return r
}

// corsMiddleware handles CORS for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// metricsMiddleware records every request against its route pattern
func metricsMiddleware(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordRequest(c.Request.Method, endpoint, fmt.Sprintf("%d", status), time.Since(start).Seconds())

		if status >= 400 {
			errorType := "client_error"
			if status >= 500 {
				errorType = "server_error"
			}
			m.RecordError(c.Request.Method, endpoint, errorType)
		}
	}
}

// Server runs the router on an http.Server
type Server struct {
	server *http.Server
}

// NewServer creates the control API server
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	log.Printf("Control API listening on %s", s.server.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("control API failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Printf("Stopping control API...")
	return s.server.Shutdown(shutdownCtx)
}
