package campaign

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/appship/engage-api/internal/service/drip"
)

type Handler struct {
	service *drip.Service
	cronKey string
}

// NewHandler wires the scheduler trigger endpoints. cronKey guards
// them; an empty key disables the check (local development).
func NewHandler(service *drip.Service, cronKey string) *Handler {
	return &Handler{service: service, cronKey: cronKey}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	campaigns.Use(h.requireCronKey)
	{
		campaigns.POST("/leads/run", h.RunLeadSequence)
		campaigns.POST("/outreach/run", h.RunColdOutreach)
	}
}

func (h *Handler) requireCronKey(c *gin.Context) {
	if h.cronKey != "" && c.GetHeader("X-Cron-Key") != h.cronKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid cron key"})
		return
	}
	c.Next()
}

func (h *Handler) RunLeadSequence(c *gin.Context) {
	result, err := h.service.RunLeadSequence(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("lead sequence run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"results":   result,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) RunColdOutreach(c *gin.Context) {
	result, err := h.service.RunColdOutreach(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("cold outreach run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sent":      result.Sent,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
