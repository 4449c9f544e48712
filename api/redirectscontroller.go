package api

import (
	"errors"
	"net/http"
	"strconv"

	"quill/metrics"
	"quill/redirects"
	"quill/store"
	"quill/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RedirectController validates, stores and resolves rewrite rules
type RedirectController struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRedirectController creates the controller
func NewRedirectController(deps Deps) *RedirectController {
	return &RedirectController{store: deps.Store, logger: deps.Logger}
}

// RegisterRedirectRoutes registers rewrite rule endpoints.
func RegisterRedirectRoutes(r *gin.Engine, h *RedirectController) {
	g := r.Group("/api/redirects")
	g.POST("/validate", h.handleValidate)
	g.POST("", h.handleCreate)
	g.GET("/resolve", h.handleResolve)
}

// RuleRequest is a proposed rewrite rule
type RuleRequest struct {
	ID         string `json:"id"`
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
	StatusCode int    `json:"status_code"`
	// IsActive defaults to true when omitted
	IsActive *bool `json:"is_active"`
}

func (r RuleRequest) rule() types.RewriteRule {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return types.RewriteRule{
		ID:         r.ID,
		SourcePath: r.SourcePath,
		TargetPath: r.TargetPath,
		StatusCode: r.StatusCode,
		IsActive:   active,
	}
}

// ValidateResponse reports whether a rule would loop
type ValidateResponse struct {
	WouldLoop bool   `json:"would_loop"`
	Source    string `json:"source"`
	Target    string `json:"target"`
}

func (h *RedirectController) check(c *gin.Context) (types.RewriteRule, ValidateResponse, bool) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return types.RewriteRule{}, ValidateResponse{}, false
	}
	rule := req.rule()
	resp := ValidateResponse{
		WouldLoop: redirects.WouldCreateLoop(rule, h.store.ActiveRules()),
		Source:    redirects.NormalizePath(rule.SourcePath),
		Target:    redirects.NormalizePath(rule.TargetPath),
	}
	return rule, resp, true
}

func (h *RedirectController) handleValidate(c *gin.Context) {
	_, resp, ok := h.check(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RedirectController) handleCreate(c *gin.Context) {
	rule, resp, ok := h.check(c)
	if !ok {
		return
	}
	// inactive rules cannot redirect anyone, so they never loop
	if rule.IsActive && resp.WouldLoop {
		c.JSON(http.StatusConflict, gin.H{"error": "rule would create a redirect loop", "source": resp.Source, "target": resp.Target})
		return
	}
	stored, err := h.store.UpsertRule(rule)
	if errors.Is(err, store.ErrSourceTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "source": resp.Source, "target": resp.Target})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("rewrite rule stored", zap.String("source", stored.SourcePath), zap.String("target", stored.TargetPath))
	c.JSON(http.StatusCreated, stored)
}

func (h *RedirectController) handleResolve(c *gin.Context) {
	path := c.Query("path")
	res, ok := redirects.Resolve(path, h.store.ActiveRules())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no redirect for path", "path": redirects.NormalizePath(path)})
		return
	}
	c.JSON(http.StatusOK, res)
}

// serveRedirects answers non-API requests matching an active rule
func serveRedirects(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st == nil || isReservedPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}
		res, ok := redirects.Resolve(c.Request.URL.Path, st.ActiveRules())
		if !ok {
			c.Next()
			return
		}
		metrics.RedirectsServedTotal.WithLabelValues(strconv.Itoa(res.StatusCode)).Inc()
		c.Redirect(res.StatusCode, res.Target)
		c.Abort()
	}
}
