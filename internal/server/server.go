// Package server is the persistence endpoint the sync client talks to. All
// writes go through a single /exec route whose action, type and id travel in
// the query string, answering with a {success, data, error} envelope.
package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pmsync/internal/storage/sqlite"
)

// Config tunes access control.
type Config struct {
	// APIKey, when set, must be passed as the apiKey query parameter.
	APIKey         string
	AllowedOrigins []string
	// StaticDir optionally holds a built dashboard to serve at /.
	StaticDir string
}

// Server provides HTTP handlers for the endpoint.
type Server struct {
	engine *gin.Engine
	store  *sqlite.Store
	hub    *Hub
	logger *zap.Logger
	cfg    Config
}

// New constructs the HTTP server with routes and middleware configured and
// starts the change feed hub.
func New(store *sqlite.Store, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	srv := &Server{
		engine: router,
		store:  store,
		hub:    NewHub(logger, originChecker(cfg.AllowedOrigins)),
		logger: logger,
		cfg:    cfg,
	}
	go srv.hub.Run()

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Close stops the change feed.
func (s *Server) Close() {
	s.hub.Stop()
}

func allowsAll(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowsAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func originChecker(origins []string) func(*http.Request) bool {
	if allowsAll(origins) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("action", c.Query("action")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// registerRoutes wires all handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/api/healthz", s.handleHealth)
	s.engine.GET("/ws", s.requireKey, s.hub.handleWebSocket)

	exec := s.engine.Group("/exec", s.requireKey)
	{
		exec.POST("", s.handleExec)
		exec.GET("", s.handleExec)
	}

	s.mountStatic(s.cfg.StaticDir)
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": s.hub.Clients()})
}

func (s *Server) requireKey(c *gin.Context) {
	if s.cfg.APIKey != "" && c.Query("apiKey") != s.cfg.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Success: false, Error: "invalid api key"})
		return
	}
	c.Next()
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// respondError logs the error and returns a failure envelope.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	s.logger.Warn("request failed",
		zap.String("action", c.Query("action")),
		zap.String("type", c.Query("type")),
		zap.String("id", c.Query("id")),
		zap.Error(err))
	c.JSON(status, envelope{Success: false, Error: err.Error()})
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: payload})
}
