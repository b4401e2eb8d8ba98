package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/metrics"
	"naturelife-cert/internal/repository"
	"naturelife-cert/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	generator *certificate.Generator
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
}

// NewHandlers creates new HTTP handlers. s may be nil when the inbox poller
// is disabled.
func NewHandlers(db *gorm.DB, gen *certificate.Generator, s *scheduler.Scheduler, m *metrics.Metrics, g prometheus.Gatherer) *Handlers {
	return &Handlers{
		db:        db,
		repo:      repository.New(db),
		generator: gen,
		scheduler: s,
		metrics:   m,
		gatherer:  g,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/donations", h.ListDonations)
		api.POST("/donations", h.CreateDonation)
		api.GET("/donations/:id", h.GetDonation)
		api.PUT("/donations/:id", h.UpdateDonation)
		api.DELETE("/donations/:id", h.DeleteDonation)
		api.GET("/donations/:id/certificate", h.GetCertificate)

		api.GET("/dispatches", h.GetDispatches)
		api.GET("/dispatches/:id", h.GetDispatch)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
