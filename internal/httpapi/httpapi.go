// Package httpapi serves template searches over HTTP with gin.
//
// Routes:
//
//	GET  /api/ping      liveness
//	POST /api/search    JSON SearchRequest -> service.Response
//	POST /api/annotate  JSON AnnotateRequest -> service.AnnotateResponse
//	GET  /ws/search     one SearchRequest per text message
//	GET  /metrics       Prometheus exposition, when metrics are enabled
//
// Every response carries an X-Request-ID header. A request ID supplied by
// the client is reused; otherwise one is generated.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/image-search-mcp/internal/metrics"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Server is the HTTP transport.
type Server struct {
	svc    *service.Service
	log    *zap.Logger
	engine *gin.Engine
}

// New builds the router. m may be nil, in which case /metrics is not
// served.
func New(svc *service.Service, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{svc: svc, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/search", s.handleSearch)
	r.POST("/api/annotate", s.handleAnnotate)
	r.GET("/ws/search", s.handleWebSocket)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	s.engine = r
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
