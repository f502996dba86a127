package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// setupFallbackRoutes registers the root banner and the JSON 404.
func setupFallbackRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Construction Budget Predictor API is running!")
	})

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}
