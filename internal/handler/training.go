package handler

import (
	"net/http"
	"strconv"

	"budgetpredictor/internal/model"
	"budgetpredictor/internal/service"

	"github.com/gin-gonic/gin"
)

// TrainingHandler handles training run HTTP requests
type TrainingHandler struct {
	budgetService *service.BudgetService
	defaultLimit  int
	maxLimit      int
}

// NewTrainingHandler creates a new training run handler
func NewTrainingHandler(budgetService *service.BudgetService, defaultLimit, maxLimit int) *TrainingHandler {
	return &TrainingHandler{
		budgetService: budgetService,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
	}
}

// List handles GET /api/v1/training-runs
func (h *TrainingHandler) List(c *gin.Context) {
	limit, ok := parseLimit(c, h.defaultLimit, h.maxLimit)
	if !ok {
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.budgetService.ListTrainingRuns(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, "Failed to list training runs", err)
		return
	}

	c.JSON(http.StatusOK, model.TrainingRunListResponse{
		Runs:   runs,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/v1/training-runs/:id
func (h *TrainingHandler) Get(c *gin.Context) {
	run, err := h.budgetService.GetTrainingRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get training run", err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// parseLimit reads the limit query parameter, capped to maxLimit. It writes
// a 400 and returns false when the value is not a number.
func parseLimit(c *gin.Context, defaultLimit, maxLimit int) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return 0, false
	}

	// Validate and cap limits
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}
