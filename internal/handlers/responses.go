package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-sync-service/internal/middleware"
	"storefront-sync-service/internal/models"
)

func respondError(c *gin.Context, status int, code, message string) {
	respondFieldError(c, status, models.Error{Code: code, Message: message})
}

func respondFieldError(c *gin.Context, status int, apiErr models.Error) {
	c.Header("Cache-Control", middleware.NoStore)
	c.JSON(status, models.ErrorResponse{
		Success:   false,
		Error:     apiErr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: middleware.GetRequestID(c),
	})
}

func respondValidation(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+param+" format")
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}
