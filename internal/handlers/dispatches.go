package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"naturelife-cert/internal/repository"
)

// GetDispatches returns dispatch logs with pagination
func (h *Handlers) GetDispatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	logs, total, err := h.repo.ListDispatchLogs(page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch dispatch logs",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]DispatchResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, toDispatchResponse(&logs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"dispatches": responses,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetDispatch returns a specific dispatch log
func (h *Handlers) GetDispatch(c *gin.Context) {
	id, ok := parseID(c, "dispatch")
	if !ok {
		return
	}

	entry, err := h.repo.GetDispatchLog(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Dispatch log not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch dispatch log",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, toDispatchResponse(entry))
}
