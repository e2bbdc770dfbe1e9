package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sale_inviter/internal/api/dto"
)

// GetLogs handles GET /api/v1/logs
func (h *Handler) GetLogs(c *gin.Context) {
	var req dto.LogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	logs, err := h.service.Logs(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to load logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load logs"})
		return
	}

	c.JSON(http.StatusOK, dto.LogsResponse{Logs: logs})
}

// ClearLogs handles DELETE /api/v1/logs
func (h *Handler) ClearLogs(c *gin.Context) {
	if err := h.service.ClearLogs(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear logs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear logs"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Reset handles POST /api/v1/reset: forget processed sales, rewind the last
// check time and restart the scheduler so a full sync runs right away.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		h.logger.Error("Failed to reset", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset"})
		return
	}

	h.scheduler.Restart()

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// Sync handles POST /api/v1/sync and runs one cycle synchronously.
func (h *Handler) Sync(c *gin.Context) {
	result, ran := h.scheduler.RunOnce(context.WithoutCancel(c.Request.Context()))
	if !ran {
		c.JSON(http.StatusConflict, gin.H{"error": "A cycle is already running"})
		return
	}
	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cycle failed, see logs"})
		return
	}

	c.JSON(http.StatusOK, dto.FromCycleResult(result))
}

// TestGitHub handles POST /api/v1/connections/github
func (h *Handler) TestGitHub(c *gin.Context) {
	var req dto.GitHubTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token, owner and repo are required"})
		return
	}

	c.JSON(http.StatusOK, h.service.TestGitHub(c.Request.Context(), req.Token, req.Owner, req.Repo))
}

// TestGumroad handles POST /api/v1/connections/gumroad
func (h *Handler) TestGumroad(c *gin.Context) {
	var req dto.GumroadTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	c.JSON(http.StatusOK, h.service.TestGumroad(c.Request.Context(), req.Token))
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"service":           "sale-inviter",
		"scheduler_started": h.scheduler.Started(),
		"cycle_running":     h.scheduler.Running(),
		"interval":          h.scheduler.Interval().String(),
	})
}
