package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"naturelife-cert/internal/pipeline"
	"naturelife-cert/internal/scheduler"
)

// StartScheduler starts the inbox scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if !h.schedulerAvailable(c) {
		return
	}
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the inbox scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if !h.schedulerAvailable(c) {
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunOnce runs one inbox batch and returns its summary
func (h *Handlers) RunOnce(c *gin.Context) {
	if !h.schedulerAvailable(c) {
		return
	}

	summary, err := h.scheduler.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrBatchRunning):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "batch_running",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
	case pipeline.FatalError(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "mailbox_error",
			Message: err.Error(),
			Code:    http.StatusBadGateway,
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	default:
		c.JSON(http.StatusOK, summary)
	}
}

// GetSchedulerStatus returns scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if !h.schedulerAvailable(c) {
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *Handlers) schedulerAvailable(c *gin.Context) bool {
	if h.scheduler != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "scheduler_unavailable",
		Message: "Inbox polling is not configured",
		Code:    http.StatusServiceUnavailable,
	})
	return false
}
