package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"budgetpredictor/internal/middleware"
	"budgetpredictor/internal/model"
	"budgetpredictor/internal/service"

	"github.com/gin-gonic/gin"
)

// PredictHandler handles prediction HTTP requests
type PredictHandler struct {
	budgetService *service.BudgetService
	maxBatchSize  int
}

// NewPredictHandler creates a new prediction handler
func NewPredictHandler(budgetService *service.BudgetService, maxBatchSize int) *PredictHandler {
	return &PredictHandler{
		budgetService: budgetService,
		maxBatchSize:  maxBatchSize,
	}
}

// Predict handles POST /api/v1/predict
func (h *PredictHandler) Predict(c *gin.Context) {
	var raw model.RawRecord
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.budgetService.Predict(c.Request.Context(), raw, middleware.GetRequestID(c))
	if err != nil {
		respondError(c, "Prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// PredictBatch handles POST /api/v1/predict/batch
func (h *PredictHandler) PredictBatch(c *gin.Context) {
	var req model.BatchPredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Records) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Too many records: %d, at most %d per batch", len(req.Records), h.maxBatchSize),
		})
		return
	}

	response, err := h.budgetService.PredictBatch(c.Request.Context(), req.Records, middleware.GetRequestID(c))
	if err != nil {
		respondError(c, "Batch prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// respondError maps pipeline errors onto HTTP statuses.
func respondError(c *gin.Context, prefix string, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotTrained), errors.Is(err, model.ErrSchemaMismatch):
		status = http.StatusServiceUnavailable
		slog.Error("model unavailable", "error", err, "request_id", middleware.GetRequestID(c))
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{"error": prefix + ": " + err.Error()})
}
