package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sale_inviter/internal/api/dto"
	"sale_inviter/internal/domain"
)

// GetSettings handles GET /api/v1/settings. Tokens are masked.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, settings.Masked())
}

// UpdateSetting handles PUT /api/v1/settings/:key
func (h *Handler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")

	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	restart, err := h.service.UpdateSetting(c.Request.Context(), key, *req.Value)
	switch {
	case errors.Is(err, domain.ErrUnknownSetting):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrInvalidSetting):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Failed to update setting", slog.String("key", key), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}

	if restart {
		h.scheduler.Restart()
	}

	c.JSON(http.StatusOK, dto.UpdateSettingResponse{Key: key, Restarted: restart})
}

// GetMappings handles GET /api/v1/mappings
func (h *Handler) GetMappings(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load settings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load mappings"})
		return
	}

	c.JSON(http.StatusOK, dto.MappingsResponse{Mappings: settings.RepoMappings})
}

// ReplaceMappings handles PUT /api/v1/mappings. Entries without an id get one.
func (h *Handler) ReplaceMappings(c *gin.Context) {
	var req dto.MappingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	mappings := make([]domain.RepoMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		mappings = append(mappings, m)
	}

	if err := h.service.SetRepoMappings(c.Request.Context(), mappings); err != nil {
		h.logger.Error("Failed to save mappings", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save mappings"})
		return
	}

	c.JSON(http.StatusOK, dto.MappingsResponse{Mappings: mappings})
}
