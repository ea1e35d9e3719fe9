package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/application/sync"
	"github.com/sellerhub/backend/internal/domain/connection"
)

type fakePushHandler struct {
	outcome sync.PushOutcome
	err     error
	gotBody []byte
}

func (f *fakePushHandler) HandlePush(_ context.Context, _ connection.ProviderCode, _ http.Header, body []byte) (sync.PushOutcome, error) {
	f.gotBody = body
	return f.outcome, f.err
}

func newWebhookRouter(push PushHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWebhookHandler(push, zap.NewNop())
	r.POST("/webhooks/:provider", h.Receive)
	return r
}

func postWebhook(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Accepted(t *testing.T) {
	push := &fakePushHandler{outcome: sync.PushOutcomeAccepted}
	r := newWebhookRouter(push)

	w := postWebhook(r, "/webhooks/shopify", `{"id":"evt-1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ACCEPTED")
	assert.Equal(t, `{"id":"evt-1"}`, string(push.gotBody))
}

func TestWebhookHandler_DuplicateGets200(t *testing.T) {
	push := &fakePushHandler{outcome: sync.PushOutcomeAlreadyProcessed}
	r := newWebhookRouter(push)

	w := postWebhook(r, "/webhooks/shopify", `{"id":"evt-1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_PROCESSED")
}

func TestWebhookHandler_PermanentRejectGets200Failure(t *testing.T) {
	push := &fakePushHandler{
		outcome: sync.PushOutcomePermanentReject,
		err:     connection.ErrInvalidSignature,
	}
	r := newWebhookRouter(push)

	w := postWebhook(r, "/webhooks/shopify", `{"id":"evt-1"}`)

	// 200 so the provider stops redelivering, but the body reports failure.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestWebhookHandler_TransientGets503(t *testing.T) {
	push := &fakePushHandler{
		outcome: sync.PushOutcomeTransientRetry,
		err:     connection.ErrProviderUnavailable,
	}
	r := newWebhookRouter(push)

	w := postWebhook(r, "/webhooks/etsy", `{"id":"evt-1"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhookHandler_UnknownProviderGets200(t *testing.T) {
	push := &fakePushHandler{outcome: sync.PushOutcomeAccepted}
	r := newWebhookRouter(push)

	w := postWebhook(r, "/webhooks/amazon", `{"id":"evt-1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Nil(t, push.gotBody)
}
