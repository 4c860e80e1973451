package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/securefront/compliance-scheduler/internal/config"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/http/handlers"
	"github.com/securefront/compliance-scheduler/internal/http/middleware"
	"github.com/securefront/compliance-scheduler/internal/metrics"

	_ "github.com/securefront/compliance-scheduler/docs"
)

func Router(cfg config.Config, store db.Gateway, jobs handlers.JobRunner, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "" || cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Jobs:      jobs,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/jobs", h.JobsList)
		api.GET("/runs/latest", h.RunsLatest)
		api.GET("/alerts", h.AlertsList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/jobs/:name/run", h.TriggerJob)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
