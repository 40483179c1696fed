package api

import (
	"errors"
	"net/http"
	"time"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/service"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request, with any errors handlers attached
// through c.Error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"clientIP", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// respondError maps service and domain errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		generationErr *domain.GenerationError
		schemaErr     *domain.SchemaValidationError
	)
	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrNoPatientSelected):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFoundErr):
		abortWithError(c, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, service.ErrSubmissionInFlight), errors.Is(err, service.ErrSessionAbandoned):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.As(err, &generationErr), errors.As(err, &schemaErr):
		abortWithError(c, http.StatusBadGateway, service.FailureMessage)
	default:
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
