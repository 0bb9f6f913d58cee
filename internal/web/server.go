// Package web serves the dashboard and the HTTP API the player talks
// to: catalog status, thumbnails, watch-position updates and local
// video playback.
package web

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelcache/reelcache/internal/catalog"
	"github.com/reelcache/reelcache/internal/config"
	"github.com/reelcache/reelcache/internal/logger"
	"github.com/reelcache/reelcache/internal/service"
)

//go:embed static/*
var staticFiles embed.FS

// Catalog is the view of the video catalog the handlers need.
type Catalog interface {
	List() []catalog.Video
	Get(index int) (catalog.Video, bool)
	Len() int
	CurrentIndex() int
	SetCurrentIndex(index int) error
	UsedStorageBytes() int64
	TotalDownloadSpeed() float64
	TotalDownloadedMinutes() float64
}

// Server is the HTTP dashboard and API service.
type Server struct {
	*service.Base
	config     config.WebConfig
	logger     *logger.Logger
	catalog    Catalog
	gatherer   prometheus.Gatherer
	extract    func(data []byte) ([]byte, error)
	maxStorage int64
	router     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates the web server.
func NewServer(
	cfg config.WebConfig,
	cat Catalog,
	gatherer prometheus.Gatherer,
	extract func(data []byte) ([]byte, error),
	maxStorage int64,
	log *logger.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		Base:       service.NewBase("web-server", log),
		config:     cfg,
		logger:     log,
		catalog:    cat,
		gatherer:   gatherer,
		extract:    extract,
		maxStorage: maxStorage,
		router:     router,
		startTime:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// Start begins listening. Binding errors surface asynchronously in the
// log; a successful bind is assumed after a short grace period.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Write and idle timeouts stay off so long video responses
		// aren't cut mid-stream.
	}

	go func() {
		s.Log().Info("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Log().Error("Web server error", "address", addr, "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.Log().Info("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/thumbnail", s.handleThumbnail)
		api.POST("/set_index", s.handleSetIndex)
	}

	s.router.GET("/video.mp4", s.handleVideo)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.router.GET("/dashboard", s.handleDashboard)
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
	})
}

// ginLogger logs each request through the structured logger.
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware allows the dashboard to be opened from other local
// origins.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
