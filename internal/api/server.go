// Package api serves trade analyses over HTTP.
package api

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/logging"
	"tradecoach/internal/models"
	"tradecoach/internal/performance"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/resilience"
	"tradecoach/internal/security"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Analyzer runs one analysis per request.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, pipeline.Outcome, error)
	Models() []string
}

// Server is the HTTP API in front of the analysis pipeline.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	analyzer   Analyzer
	auth       *security.TokenChecker
	limiter    *performance.RateLimiter
	breakers   *resilience.CircuitBreakerRegistry
	logger     zerolog.Logger
	startedAt  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires a bearer token on analysis routes when the checker is enabled.
func WithAuth(tc *security.TokenChecker) Option {
	return func(s *Server) { s.auth = tc }
}

// WithRateLimiter rejects analysis requests beyond the limiter's rate with 429.
func WithRateLimiter(rl *performance.RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithBreakers reports circuit breaker state on the health route.
func WithBreakers(reg *resilience.CircuitBreakerRegistry) Option {
	return func(s *Server) { s.breakers = reg }
}

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, analyzer Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:  analyzer,
		logger:    zerolog.Nop(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(s.recovery(), s.requestID(), s.accessLog())

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)

	trades := api.Group("/trades", s.authenticate(), s.rateLimit())
	trades.POST("/analyze", s.handleAnalyze)

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server stopped")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// POST /api/trades/analyze
func (s *Server) handleAnalyze(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.NewValidationError("body", nil, "request body must be a JSON object", err))
		return
	}

	resp, _, err := s.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
		"models":   s.analyzer.Models(),
	}
	if s.breakers != nil {
		body["circuit_breakers"] = s.breakers.AllStats()
	}
	c.JSON(http.StatusOK, body)
}

// writeError reports a hard failure. Only validation and auth errors reach
// here; the pipeline folds everything else into a 200 body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   security.MaskSecrets(err.Error()),
	})
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reqLogger := logging.WithRequestID(s.logger, logging.RequestIDFromContext(c.Request.Context()))
		reqLogger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		if err := s.auth.CheckAuthorization(c.GetHeader("Authorization")); err != nil {
			s.writeError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		if wait := s.limiter.Reserve(); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   apperrors.ErrRateLimited.Error(),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal error",
		})
	})
}
