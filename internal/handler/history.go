package handler

import (
	"net/http"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/service"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves logged predictions
type HistoryHandler struct {
	budgetService *service.BudgetService
	defaultLimit  int
	maxLimit      int
}

// NewHistoryHandler creates a new prediction history handler
func NewHistoryHandler(budgetService *service.BudgetService, defaultLimit, maxLimit int) *HistoryHandler {
	return &HistoryHandler{
		budgetService: budgetService,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
	}
}

// Recent handles GET /api/v1/predictions/recent
func (h *HistoryHandler) Recent(c *gin.Context) {
	limit, ok := parseLimit(c, h.defaultLimit, h.maxLimit)
	if !ok {
		return
	}

	response, err := h.budgetService.RecentPredictions(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to fetch predictions", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Similar handles POST /api/v1/predictions/similar. The body is a project
// record; the response holds its estimate and the closest logged projects.
func (h *HistoryHandler) Similar(c *gin.Context) {
	limit, ok := parseLimit(c, h.defaultLimit, h.maxLimit)
	if !ok {
		return
	}

	var raw model.RawRecord
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.budgetService.SimilarPredictions(c.Request.Context(), raw, limit)
	if err != nil {
		respondError(c, "Similarity search failed", err)
		return
	}

	c.JSON(http.StatusOK, response)
}
