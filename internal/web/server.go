// internal/web/server.go
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tophosts/internal/config"
	"tophosts/internal/database"
	"tophosts/internal/housekeeping"
	"tophosts/internal/inventory"
	"tophosts/internal/metrics"
	"tophosts/internal/widget"
)

type Server struct {
	config      *config.Config
	store       database.ExtendedStore
	widgets     *widget.Service
	housekeeper *housekeeping.Housekeeper
	syncer      *inventory.Syncer
	metrics     *metrics.Collector
	router      *gin.Engine
	server      *http.Server

	wsMu      sync.Mutex
	wsClients map[*WSClient]bool
}

func NewServer(cfg *config.Config, store database.ExtendedStore, widgets *widget.Service, housekeeper *housekeeping.Housekeeper, syncer *inventory.Syncer, metricsCollector *metrics.Collector) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		config:      cfg,
		store:       store,
		widgets:     widgets,
		housekeeper: housekeeper,
		syncer:      syncer,
		metrics:     metricsCollector,
		router:      router,
		wsClients:   make(map[*WSClient]bool),
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	// Start metrics update routine
	go s.updateMetricsRoutine(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.closeWebSockets()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)
		api.GET("/stats", s.getStats)
		api.GET("/build", s.getBuildInfo)

		api.GET("/hosts", s.getHosts)
		api.GET("/hosts/:id", s.getHost)
		api.POST("/hosts", s.createHost)
		api.PUT("/hosts/:id", s.updateHost)
		api.DELETE("/hosts/:id", s.deleteHost)

		api.GET("/items", s.getItems)
		api.GET("/items/:id", s.getItem)
		api.POST("/items", s.createItem)
		api.DELETE("/items/:id", s.deleteItem)
		api.GET("/items/:id/history", s.getItemHistory)
		api.POST("/items/:id/history", s.addItemHistory)

		api.GET("/maintenances", s.getMaintenances)
		api.POST("/maintenances", s.saveMaintenance)

		widgets := api.Group("/widgets/tophosts")
		{
			widgets.POST("/view", s.renderTopHosts)
			widgets.POST("/column", s.saveColumn)
			widgets.POST("/validate", s.validateFields)
		}
	}

	s.setupHousekeepingRoutes(api)

	s.router.GET("/ws/tophosts", s.handleWebSocket)

	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   Version,
	})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.store.GetDatabaseStats(c.Request.Context())
	s.metrics.RecordOperation("stats", err)
	if err != nil {
		logrus.WithError(err).Error("Failed to get database stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get database stats"})
		return
	}

	s.wsMu.Lock()
	subscribers := len(s.wsClients)
	s.wsMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"database":    stats,
		"subscribers": subscribers,
	}})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.metrics.UpdateSystemMetrics(ctx); err != nil {
				logrus.WithError(err).Error("Failed to update system metrics")
			}
		}
	}
}

const requestIDHeader = "X-Request-ID"

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request handled")
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Request-ID, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
