// Package server exposes the pipeline as an HTTP trigger.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/pipeline"
)

// ErrNoRunner is returned by New without a RunFunc.
var ErrNoRunner = errors.New("server: run function is required")

// Request triggers one full run.
type Request struct {
	Src    string         `json:"src" binding:"required"`
	Dst    string         `json:"dst" binding:"required"`
	Config *config.Config `json:"config"`
	Force  bool           `json:"force"`
}

// RunFunc performs a full run for a request.
type RunFunc func(ctx context.Context, req Request) (pipeline.Summary, error)

// Options configures the server.
type Options struct {
	Addr    string
	Run     RunFunc
	Logger  *slog.Logger
	Timeout time.Duration
}

// Server serves POST / and GET /healthz.
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
}

const defaultTimeout = 30 * time.Minute

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Run == nil {
		return nil, ErrNoRunner
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	router := gin.New()
	router.Use(
		recoveryMiddleware(opts.Logger),
		requestIDMiddleware(),
		loggingMiddleware(opts.Logger),
	)
	h := &handler{run: opts.Run, logger: opts.Logger, timeout: opts.Timeout}
	setupRouter(router, h)

	return &Server{
		router: router,
		httpSrv: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run listens until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Run() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func setupRouter(router *gin.Engine, h *handler) {
	router.POST("/", h.trigger)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
}

type handler struct {
	// mu serializes runs; a destination store has a single writer.
	mu      sync.Mutex
	run     RunFunc
	logger  *slog.Logger
	timeout time.Duration
}

func (h *handler) trigger(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	summary, err := h.serialized(ctx, req)
	if err != nil {
		h.errorResponse(c, err)
		return
	}

	h.logger.Info("run via http",
		"request_id", requestID(c),
		"run_id", summary.RunID,
		"files", len(summary.Files),
		"failed", summary.Failed,
	)
	files := summary.Files
	if files == nil {
		files = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "files": files})
}

func (h *handler) serialized(ctx context.Context, req Request) (pipeline.Summary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run(ctx, req)
}

func (h *handler) errorResponse(c *gin.Context, err error) {
	c.Error(err) //nolint:errcheck
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status": "ERR",
		"error":  gin.H{"message": err.Error()},
	})
}

const requestIDKey = "request_id"

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func loggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", requestID(c),
		}
		if len(c.Errors) != 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		log.Info("request", attrs...)
	}
}

func recoveryMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic caught", "panic", r, "request_id", requestID(c))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status": "ERR",
					"error":  gin.H{"message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
