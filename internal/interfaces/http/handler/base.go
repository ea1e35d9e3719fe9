package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/interfaces/http/dto"
	"github.com/sellerhub/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getTenantID extracts the tenant ID from JWT claims
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return uuid.Parse(tenantIDStr)
}

// getProvider parses the :provider path parameter. Provider codes are
// stored upper case, the URL form is accepted in any case.
func getProvider(c *gin.Context) (connection.ProviderCode, error) {
	code := connection.ProviderCode(strings.ToUpper(c.Param("provider")))
	if !code.IsValid() {
		return "", connection.ErrInvalidProvider
	}
	return code, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps domain errors onto HTTP responses. Anything not
// recognized is reported as an internal error without leaking detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, connection.ErrConnectionNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Connection not found")
	case errors.Is(err, connection.ErrAlreadyConnected):
		h.Error(c, http.StatusConflict, dto.ErrCodeAlreadyExists, "Provider is already connected")
	case errors.Is(err, connection.ErrVersionConflict):
		h.Error(c, http.StatusConflict, dto.ErrCodeConcurrencyConflict, "Connection was modified concurrently, retry the request")
	case errors.Is(err, connection.ErrNotConnected):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Provider is not connected")
	case errors.Is(err, connection.ErrStateNotFound):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Authorization state is invalid or expired")
	case errors.Is(err, connection.ErrInvalidProvider),
		errors.Is(err, connection.ErrProviderNotRegistered):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Unknown provider")
	case errors.Is(err, connection.ErrProviderAuthFailed):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Provider rejected the stored credential")
	case errors.Is(err, connection.ErrProviderUnavailable),
		errors.Is(err, connection.ErrProviderRateLimited):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Provider is temporarily unavailable")
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
