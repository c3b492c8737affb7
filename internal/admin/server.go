// Package admin serves the operator HTTP surface: manual message
// operations, the message view behind admin URLs, inbound webhooks,
// health and metrics.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vargasjr/internal/agent"
	"vargasjr/internal/domain"
	"vargasjr/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Store is what the admin surface reads and writes.
type Store interface {
	domain.MessageStore
	ListOperations(ctx context.Context, messageID string) ([]domain.InboxMessageOperation, error)
	ListOutbox(ctx context.Context, parentMessageID string) ([]domain.OutboxMessage, error)
	Ping(ctx context.Context) error
}

// Runner triggers router runs on demand.
type Runner interface {
	Run(ctx context.Context, req agent.Request) agent.RunOutput
}

// Config wires the server. Runner and the webhooks are optional.
type Config struct {
	Host          string
	Port          int
	APIKey        string
	Store         Store
	Runner        Runner
	FormWebhook   http.Handler
	TwilioWebhook http.Handler
	Logger        *slog.Logger
}

type Server struct {
	addr   string
	apiKey string
	store  Store
	manual *agent.Manual
	runner Runner
	logger *slog.Logger
	engine *gin.Engine
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		apiKey: cfg.APIKey,
		store:  cfg.Store,
		manual: agent.NewManual(cfg.Store, cfg.Logger),
		runner: cfg.Runner,
		logger: cfg.Logger,
	}
	s.engine = s.routes(cfg)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(metrics.Collector.Handler()))

	hooks := r.Group("/webhooks")
	if cfg.FormWebhook != nil {
		hooks.POST("/form", gin.WrapH(cfg.FormWebhook))
	}
	if cfg.TwilioWebhook != nil {
		hooks.POST("/twilio", gin.WrapH(cfg.TwilioWebhook))
	}

	api := r.Group("/api", s.requireAPIKey())
	api.POST("/messages/:message_id/operation", s.markMessage)
	if s.runner != nil {
		api.POST("/runs", s.triggerRun)
	}

	view := r.Group("/admin", s.requireAPIKey())
	view.GET("/inboxes/:inbox_id/messages/:message_id", s.showMessage)
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("admin API started", "addr", "http://"+s.addr, "auth", s.apiKey != "")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func respondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

// requireAPIKey checks the bearer token when an API key is configured.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			respondError(c, "missing bearer token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			respondError(c, "invalid token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime_seconds": int64(metrics.Collector.Uptime().Seconds())})
}

type operationRequest struct {
	Operation   string `json:"operation" binding:"required"`
	ExecutionID string `json:"execution_id"`
}

func (s *Server) markMessage(c *gin.Context) {
	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, agent.ManualResult{Message: "Invalid request: " + err.Error()})
		return
	}
	op, err := agent.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, agent.ManualResult{Message: err.Error()})
		return
	}
	if req.ExecutionID == "" {
		req.ExecutionID = uuid.NewString()
	}
	res := s.manual.Apply(c.Request.Context(), c.Param("message_id"), op, req.ExecutionID)
	c.JSON(http.StatusOK, operationResponse{ManualResult: res, ExecutionID: req.ExecutionID})
}

type operationResponse struct {
	agent.ManualResult
	ExecutionID string `json:"execution_id"`
}

func (s *Server) triggerRun(c *gin.Context) {
	var req agent.Request
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "invalid request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	// the run outlives a dropped request
	out := s.runner.Run(context.WithoutCancel(c.Request.Context()), req)
	c.JSON(http.StatusOK, out)
}

type messageView struct {
	Inbox      *domain.Inbox                  `json:"inbox"`
	Message    *domain.InboxMessage           `json:"message"`
	State      domain.OperationType           `json:"state"`
	Eligible   bool                           `json:"eligible"` // intake would pick it up
	Operations []domain.InboxMessageOperation `json:"operations"`
	Replies    []domain.OutboxMessage         `json:"replies"`
}

func (s *Server) showMessage(c *gin.Context) {
	ctx := c.Request.Context()
	msg, err := s.store.GetMessage(ctx, c.Param("message_id"))
	if errors.Is(err, domain.ErrNotFound) || (err == nil && msg.InboxID != c.Param("inbox_id")) {
		respondError(c, "message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(c, "get message", err)
		return
	}
	inbox, err := s.store.GetInbox(ctx, msg.InboxID)
	if err != nil {
		s.internalError(c, "get inbox", err)
		return
	}
	ops, err := s.store.ListOperations(ctx, msg.ID)
	if err != nil {
		s.internalError(c, "list operations", err)
		return
	}
	replies, err := s.store.ListOutbox(ctx, msg.ID)
	if err != nil {
		s.internalError(c, "list outbox", err)
		return
	}

	var latest *domain.InboxMessageOperation
	state := domain.OpUnread
	if len(ops) > 0 {
		latest = &ops[len(ops)-1]
		state = latest.Operation
	}
	if ops == nil {
		ops = []domain.InboxMessageOperation{}
	}
	if replies == nil {
		replies = []domain.OutboxMessage{}
	}
	c.JSON(http.StatusOK, messageView{
		Inbox:      inbox,
		Message:    msg,
		State:      state,
		Eligible:   domain.Eligible(latest),
		Operations: ops,
		Replies:    replies,
	})
}

func (s *Server) internalError(c *gin.Context, what string, err error) {
	s.logger.Error("admin request failed", "op", what, "path", c.Request.URL.Path, "err", err)
	respondError(c, what+" failed", http.StatusInternalServerError)
}
