package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	schedulerHandler "reg-mail-forwarder-go/internal/handler/scheduler"
	"reg-mail-forwarder-go/internal/service"
	schedulerSvc "reg-mail-forwarder-go/internal/service/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	runner    *service.Runner
	scheduler *schedulerSvc.Scheduler
	db        *gorm.DB
	gatherer  prometheus.Gatherer
	uploadDir string
}

// NewHandlers creates new HTTP handlers. db is nil when the file ledger is in use.
func NewHandlers(runner *service.Runner, scheduler *schedulerSvc.Scheduler, db *gorm.DB, gatherer prometheus.Gatherer, uploadDir string) *Handlers {
	return &Handlers{
		runner:    runner,
		scheduler: scheduler,
		db:        db,
		gatherer:  gatherer,
		uploadDir: uploadDir,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/runs", h.TriggerRun)
		api.GET("/runs/defaults", h.GetDefaults)

		api.GET("/failures", h.GetFailures)

		api.POST("/scheduler/start", schedulerHandler.Start(h.scheduler))
		api.POST("/scheduler/stop", schedulerHandler.Stop(h.scheduler))
		api.POST("/scheduler/run-once", schedulerHandler.RunOnce(h.scheduler))
		api.GET("/scheduler/status", schedulerHandler.Status(h.scheduler))
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Ledger:    "file",
		Scheduler: "stopped",
	}

	if h.db != nil {
		response.Ledger = "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Status = "error"
			response.Ledger = "error"
			logrus.Errorf("Ledger database health check failed: %v", err)
		}
	}

	if h.scheduler.IsRunning() {
		response.Scheduler = "running"
		response.NextRun = h.scheduler.GetNextRun().Format(time.RFC3339)
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
