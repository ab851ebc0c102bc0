// Package api serves the expense collection resource consumed by the web
// frontend: GET/POST /api/expenses and DELETE /api/expenses/:id.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
)

// Service is implemented by *services.ExpenseService.
type Service interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, req services.CreateExpenseRequest) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type Config struct {
	Addr    string
	Service Service
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Now stamps error responses. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	service Service
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	shutdownOnce sync.Once
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("expense service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		service: cfg.Service,
		logger:  logger.WithComponent(log.ComponentAPI),
		metrics: cfg.Metrics,
		now:     now,
	}

	tracer := trace.NewMiddleware(logger, nil, clientIP)
	s.Addr = cfg.Addr
	s.Handler = tracer.Middleware(s.routes())
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 15 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", trace.RequestIDHeader},
		ExposeHeaders:   []string{"Content-Length", trace.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	expenses := r.Group("/api/expenses")
	expenses.GET("", s.handleList)
	expenses.POST("", s.handleCreate)
	expenses.DELETE("/:id", s.handleDelete)

	r.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	return r
}

// observe records request metrics labelled with the gin route template.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Shutdown gracefully stops the server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down API server", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
