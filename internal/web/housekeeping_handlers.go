// internal/web/housekeeping_handlers.go - Manual housekeeping and inventory sync
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (s *Server) setupHousekeepingRoutes(api *gin.RouterGroup) {
	hk := api.Group("/housekeeping")
	{
		hk.POST("/rollup", s.runRollup)
		hk.POST("/purge", s.runPurge)
		hk.POST("/compact", s.runCompact)
	}

	api.POST("/config/sync", s.syncInventory)
}

// POST /api/housekeeping/rollup - roll completed hours of history into trends
func (s *Server) runRollup(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	saved, err := s.housekeeper.RollupTrends(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to roll up trends")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to roll up trends"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Trends rolled up successfully",
		"trends":    saved,
		"timestamp": time.Now(),
	})
}

// POST /api/housekeeping/purge - drop history and trends past retention
func (s *Server) runPurge(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result, err := s.housekeeper.PurgeExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to purge expired data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge expired data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Expired data purged successfully",
		"data":      result,
		"timestamp": time.Now(),
	})
}

// POST /api/housekeeping/compact - rewrite the database file
func (s *Server) runCompact(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	if err := s.housekeeper.Compact(ctx); err != nil {
		logrus.WithError(err).Error("Failed to compact database")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compact database"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Database compacted successfully",
		"timestamp": time.Now(),
	})
}

// POST /api/config/sync?purge=true - re-apply the configured inventory
func (s *Server) syncInventory(c *gin.Context) {
	logrus.Info("Inventory sync requested")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result, err := s.syncer.Sync(ctx)
	if err == nil && c.Query("purge") == "true" {
		err = s.syncer.PurgeOrphans(ctx, result)
	}
	if err != nil {
		logrus.WithError(err).Error("Inventory sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Inventory sync failed", "data": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Inventory synced successfully",
		"data":      result,
		"timestamp": time.Now(),
	})
}
