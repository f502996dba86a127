package handler

import (
	"net/http"

	"budgetpredictor/internal/service"

	"github.com/gin-gonic/gin"
)

// ModelHandler handles requests about the served model
type ModelHandler struct {
	budgetService *service.BudgetService
}

// NewModelHandler creates a new model handler
func NewModelHandler(budgetService *service.BudgetService) *ModelHandler {
	return &ModelHandler{
		budgetService: budgetService,
	}
}

// Info handles GET /api/v1/model
func (h *ModelHandler) Info(c *gin.Context) {
	info, err := h.budgetService.ModelInfo()
	if err != nil {
		respondError(c, "Model unavailable", err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Importance handles GET /api/v1/model/importance
func (h *ModelHandler) Importance(c *gin.Context) {
	ranked, err := h.budgetService.Importance()
	if err != nil {
		respondError(c, "Model unavailable", err)
		return
	}

	c.JSON(http.StatusOK, ranked)
}

// Reload handles POST /api/v1/model/reload
func (h *ModelHandler) Reload(c *gin.Context) {
	info, err := h.budgetService.Reload()
	if err != nil {
		// the previous model, if any, is still serving
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Reload failed: " + err.Error(),
			"serving": h.budgetService.Ready(),
		})
		return
	}

	c.JSON(http.StatusOK, info)
}
