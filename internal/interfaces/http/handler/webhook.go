package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/application/sync"
	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/interfaces/http/dto"
)

// PushHandler is the slice of the sync orchestrator the webhook
// endpoint uses.
type PushHandler interface {
	HandlePush(ctx context.Context, provider connection.ProviderCode, headers http.Header, body []byte) (sync.PushOutcome, error)
}

// WebhookHandler receives provider push notifications. Response codes
// steer the provider's redelivery behavior: 2xx stops redelivery, 5xx
// asks for another attempt.
type WebhookHandler struct {
	BaseHandler
	sync   PushHandler
	logger *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(syncService PushHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		sync:   syncService,
		logger: logger,
	}
}

// Receive handles one webhook delivery.
// POST /webhooks/:provider
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider, err := getProvider(c)
	if err != nil {
		// Unroutable deliveries get a 200 so the provider stops retrying
		// a webhook we will never be able to process.
		c.JSON(http.StatusOK, dto.NewErrorResponse(dto.ErrCodeBadRequest, "Unknown provider"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, dto.NewErrorResponse(dto.ErrCodeBadRequest, "Unreadable request body"))
		return
	}

	outcome, err := h.sync.HandlePush(c.Request.Context(), provider, c.Request.Header, body)
	switch outcome {
	case sync.PushOutcomeAccepted, sync.PushOutcomeAlreadyProcessed:
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"outcome": string(outcome)}))
	case sync.PushOutcomePermanentReject:
		// Acknowledged but not processed. 200 keeps the provider from
		// redelivering an event that can never succeed.
		h.logger.Warn("webhook permanently rejected",
			zap.String("provider", string(provider)),
			zap.Error(err))
		c.JSON(http.StatusOK, dto.NewErrorResponse(dto.ErrCodeMalformedPayload, "Event cannot be processed"))
	default:
		// Transient failure, ask for redelivery.
		h.logger.Warn("webhook processing deferred",
			zap.String("provider", string(provider)),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable,
			dto.NewErrorResponse(dto.ErrCodeUnavailable, "Temporarily unable to process, please redeliver"))
	}
}
