package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"perpetcal/internal/config"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
)

const requestIDHeader = "X-Request-ID"

// Runner executes one conversion request. *pipeline.Service implements it.
type Runner interface {
	Run(ctx context.Context, req model.Request) ([]model.Projected, error)
}

// Server exposes the conversion pipeline over HTTP.
type Server struct {
	cfg    *config.Config
	runner Runner
	engine *gin.Engine
	encode func(any) ([]byte, error)
}

// NewServer builds the gin engine with all routes and middleware. The gin
// mode is left to the caller.
func NewServer(cfg *config.Config, runner Runner) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		engine: gin.New(),
		encode: json.Marshal,
	}

	s.engine.Use(requestID(), accessLog(), gin.CustomRecovery(recovered))
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.POST("/ical", s.handleConvert)
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/presets", s.handleListPresets)
		api.GET("/presets/:name", s.handleRunPreset)
	}
}

// requestID propagates X-Request-ID, generating one when the client sent
// none.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			kv = append(kv, "error", msg)
		}
		appLog.Info("http request", kv...)
	}
}

func recovered(c *gin.Context, err any) {
	appLog.Warn("panic recovered", "panic", err, "path", c.Request.URL.Path, "request_id", c.GetString("request_id"))
	c.String(http.StatusInternalServerError, "Internal Server Error")
	c.Abort()
}
