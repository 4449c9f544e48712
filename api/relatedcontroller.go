package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"quill/related"
	"quill/store"
	"quill/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RelatedController serves related-posts queries
type RelatedController struct {
	store        *store.Store
	engine       *related.Engine
	logger       *zap.Logger
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// NewRelatedController creates the controller
func NewRelatedController(deps Deps) *RelatedController {
	c := &RelatedController{
		store:        deps.Store,
		engine:       deps.Engine,
		logger:       deps.Logger,
		defaultLimit: deps.DefaultLimit,
		maxLimit:     deps.MaxLimit,
		now:          deps.Now,
	}
	if c.defaultLimit <= 0 {
		c.defaultLimit = 4
	}
	if c.maxLimit <= 0 {
		c.maxLimit = 50
	}
	return c
}

// RegisterRelatedRoutes registers related-posts endpoints.
func RegisterRelatedRoutes(r *gin.Engine, h *RelatedController) {
	g := r.Group("/api/posts/:id")
	g.GET("/related", h.handleRelated)
	g.DELETE("/related/cache", h.handleClearCache)
}

// RelatedResponse lists related items in rank order
type RelatedResponse struct {
	ItemID string              `json:"item_id"`
	Limit  int                 `json:"limit"`
	Items  []types.ContentItem `json:"items"`
}

func (h *RelatedController) handleRelated(c *gin.Context) {
	id := c.Param("id")

	limit := h.defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > h.maxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 0 and " + strconv.Itoa(h.maxLimit)})
			return
		}
		limit = n
	}

	useCache := true
	if v := c.Query("cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cache must be a boolean"})
			return
		}
		useCache = b
	}

	now := h.now()
	item, err := h.store.Item(id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !item.IsPublishedAt(now)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// limits ClearCache does not cover would stay stale after an edit
	useCache = useCache && h.engine.Clearable(limit)
	items := h.engine.Related(c.Request.Context(), item, h.store.PublishedItems(now), limit, useCache)
	c.JSON(http.StatusOK, RelatedResponse{ItemID: id, Limit: limit, Items: items})
}

func (h *RelatedController) handleClearCache(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.ClearCache(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to clear related cache", zap.String("item_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "item_id": id})
}
