package handler

import (
	"net/http"

	"milkrun/internal/apperr"
	"milkrun/internal/middleware"
	"milkrun/internal/service"
	"milkrun/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error onto the response envelope.
// Unclassified errors are logged and answered with a generic 500.
func writeError(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log := middleware.Logger(c)
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, response.ErrorWithDetails(status, apperr.PublicMessage(err), apperr.Details(err)))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// actorFrom reads the caller identity set by the auth middleware.
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:  c.GetString(middleware.ContextUserID),
		Role:    c.GetString(middleware.ContextRole),
		StoreID: c.GetString(middleware.ContextStoreID),
	}
}
