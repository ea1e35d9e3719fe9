package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sellerhub/backend/internal/application/sync"
	"github.com/sellerhub/backend/internal/domain/connection"
)

type fakeBatchRunner struct {
	summary    *sync.BatchSummary
	err        error
	gotTrigger connection.SyncTrigger
}

func (f *fakeBatchRunner) RunBatch(_ context.Context, trigger connection.SyncTrigger) (*sync.BatchSummary, error) {
	f.gotTrigger = trigger
	return f.summary, f.err
}

func newSyncRouter(runner BatchRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSyncHandler(runner)
	r.POST("/internal/sync/run", h.Run)
	return r
}

func TestSyncHandler_Run_AllSucceeded(t *testing.T) {
	runner := &fakeBatchRunner{summary: &sync.BatchSummary{Candidates: 3, Succeeded: 3}}
	r := newSyncRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/internal/sync/run", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"succeeded":3`)
	assert.Equal(t, connection.SyncTriggerManual, runner.gotTrigger)
}

func TestSyncHandler_Run_FailuresGet500WithSummary(t *testing.T) {
	runner := &fakeBatchRunner{summary: &sync.BatchSummary{Candidates: 3, Succeeded: 2, Failed: 1}}
	r := newSyncRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/internal/sync/run", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"failed":1`)
}

func TestSyncHandler_Run_BatchError(t *testing.T) {
	runner := &fakeBatchRunner{err: errors.New("store down")}
	r := newSyncRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/internal/sync/run", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
}
