package handlers

import (
	"net/http"

	"cacao-server/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CacheHandler struct {
	cache cache.SnapshotCache
	log   *zap.Logger
}

func NewCacheHandler(c cache.SnapshotCache, log *zap.Logger) *CacheHandler {
	return &CacheHandler{
		cache: c,
		log:   log,
	}
}

// GetCacheStats GET /api/cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("snapshot cache stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "type": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// FlushCache DELETE /api/cache
func (h *CacheHandler) FlushCache(c *gin.Context) {
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		h.log.Error("snapshot cache flush failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "type": "internal"})
		return
	}
	h.log.Info("snapshot cache flushed")
	c.Status(http.StatusNoContent)
}
