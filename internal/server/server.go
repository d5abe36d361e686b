// Package server serves the hierarchies over HTTP: an HTML viewer, a JSON
// API, health and Prometheus metrics.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/Benny93/biotree-go/internal/config"
	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
	"github.com/Benny93/biotree-go/internal/schema"
)

//go:embed templates/*.html
var templatesFS embed.FS

const shutdownTimeout = 5 * time.Second

// Server handles HTTP requests. Every request runs its own pipeline.
type Server struct {
	cfg    *config.Config
	source schema.Source
	opts   ingestion.Options
	logger *slog.Logger
	router *gin.Engine
}

// TreesResponse is the body of /api/trees.
type TreesResponse struct {
	Version    string           `json:"version"`
	Ref        string           `json:"ref"`
	Available  bool             `json:"available"`
	Categories *graph.TreeNode  `json:"categories"`
	Predicates *graph.TreeNode  `json:"predicates"`
	Aspects    *graph.TreeNode  `json:"aspects"`
	Conflicts  []graph.Conflict `json:"conflicts"`
}

// New creates a server for cfg reading schemas from source.
func New(cfg *config.Config, source schema.Source, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = config.Discard()
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		source: source,
		opts:   ingestion.OptionsFromConfig(cfg, logger),
		logger: logger,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery(), otelgin.Middleware("biotree"), s.requestLogger(), instrument())
	s.router.SetHTMLTemplate(tmpl)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "biotree"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	api := r.Group("/api")
	if s.cfg.Server.RateLimit > 0 {
		api.Use(limit(s.cfg.Server.RateLimit, s.cfg.Server.Burst))
	}
	api.GET("/trees", s.handleTrees)
	api.GET("/trees/:version", s.handleTrees)
	api.GET("/branches", s.handleBranches)
	api.GET("/branches/:version", s.handleBranches)
	api.GET("/lookup/:name", s.handleLookup)

	r.GET("/", s.handleIndex)
	r.GET("/:version", s.handleIndex)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

func (s *Server) run(c *gin.Context, version string) *ingestion.Result {
	if version == "" {
		version = s.cfg.Source.DefaultRef
	}
	return ingestion.Run(c.Request.Context(), s.source, version, s.opts, nil)
}

func (s *Server) handleIndex(c *gin.Context) {
	res := s.run(c, c.Param("version"))
	if res.Err != nil {
		c.String(http.StatusInternalServerError, "building hierarchies: %v", res.Err)
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Ref":        res.Ref,
		"Version":    res.Version,
		"Available":  res.Available,
		"Categories": res.Categories,
		"Predicates": res.Predicates,
		"Aspects":    res.Aspects,
	})
}

func (s *Server) handleTrees(c *gin.Context) {
	res := s.run(c, c.Param("version"))
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Building hierarchies failed", "details": res.Err.Error()})
		return
	}
	conflicts := res.Conflicts
	if conflicts == nil {
		conflicts = []graph.Conflict{}
	}
	c.JSON(http.StatusOK, TreesResponse{
		Version:    res.Version,
		Ref:        res.Ref,
		Available:  res.Available,
		Categories: res.Categories,
		Predicates: res.Predicates,
		Aspects:    res.Aspects,
		Conflicts:  conflicts,
	})
}

func (s *Server) handleBranches(c *gin.Context) {
	view := c.DefaultQuery("view", "canonical")
	if view != "canonical" && view != "revised" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid view", "details": "view must be canonical or revised"})
		return
	}

	res := s.run(c, c.Param("version"))
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Building hierarchies failed", "details": res.Err.Error()})
		return
	}
	if view == "revised" {
		c.JSON(http.StatusOK, res.RevisedBranches)
		return
	}
	c.JSON(http.StatusOK, res.Branches)
}

func (s *Server) handleLookup(c *gin.Context) {
	name := c.Param("name")
	res := s.run(c, c.Query("version"))
	if res.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Building hierarchies failed", "details": res.Err.Error()})
		return
	}
	found, ok := res.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "name": name, "ref": res.Ref})
		return
	}
	c.JSON(http.StatusOK, found)
}

// limit rejects requests beyond perSecond with 429.
func limit(perSecond float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
