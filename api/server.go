package api

import (
	"net/http"
	"strings"
	"time"

	"quill/related"
	"quill/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the components the HTTP layer serves
type Deps struct {
	Store        *store.Store
	Engine       *related.Engine
	Logger       *zap.Logger
	DefaultLimit int
	MaxLimit     int
	// Now overrides time.Now for publish checks
	Now func() time.Time
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(deps.Logger), serveRedirects(deps.Store))

	RegisterHealthRoutes(r)
	RegisterRelatedRoutes(r, NewRelatedController(deps))
	RegisterRedirectRoutes(r, NewRedirectController(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

const requestIDHeader = "X-Request-ID"

// requestID propagates or assigns a request ID
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

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")))
	}
}

func isReservedPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/metrics"
}

// RegisterHealthRoutes registers the health endpoint.
func RegisterHealthRoutes(r *gin.Engine) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
}
