// Package server assembles the HTTP router from its parts.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"recipehub/internal/config"
	"recipehub/internal/domain/upload"
	"recipehub/internal/middleware"
	"recipehub/internal/pkg/jwt"
	"recipehub/internal/storage"
)

type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	JWT      *jwt.Service
	Registry *upload.Registry
	// Mirror may be nil.
	Mirror  storage.Storage
	Metrics *prometheus.Registry
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) (*gin.Engine, error) {
	cfg := d.Config
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	var observer upload.Observer
	if cfg.MetricsEnabled && d.Metrics != nil {
		o, err := upload.NewPrometheusObserver("recipehub_upload", d.Metrics)
		if err != nil {
			return nil, err
		}
		observer = o
	}

	pipeline := upload.NewPipeline(upload.PipelineConfig{
		Root:         cfg.UploadsDir,
		PublicPrefix: cfg.PublicPrefix,
		Timeout:      cfg.ProcessTimeout,
		Concurrency:  cfg.ProcessConcurrency,
		MaxPixels:    cfg.MaxImagePixels,
		Mirror:       d.Mirror,
		Observer:     observer,
		Logger:       d.Logger.With("component", "upload"),
	})
	service := upload.NewService(upload.NewRepository(d.DB), pipeline.Policy(), d.Mirror, d.Logger)
	handler := upload.NewHandler(service, pipeline, d.Registry)

	r := gin.New()
	r.Use(middleware.ErrorLogger(), middleware.CORS(cfg.CORSAllowedOrigins...))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.StaticFS(cfg.PublicPrefix, newUploadsFS(cfg.UploadsDir))

	if cfg.MetricsEnabled && d.Metrics != nil {
		r.GET("/metrics",
			middleware.StaticToken(cfg.MetricsToken),
			gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	protected := v1.Group("", middleware.JWTAuth(d.JWT))
	upload.RegisterRoutes(protected, handler, middleware.AdminOnly())

	return r, nil
}
