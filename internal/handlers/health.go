package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Scheduler: "disabled",
		Metrics:   make(map[string]string),
	}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler != nil {
		status := h.scheduler.Status()
		response.Scheduler = "stopped"
		if status.Running {
			response.Scheduler = "running"
		}
		if status.NextRun != nil {
			response.Metrics["next_run"] = status.NextRun.Format(time.RFC3339)
		}
		if status.LastRun != nil {
			response.Metrics["last_run"] = status.LastRun.Format(time.RFC3339)
		}
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
