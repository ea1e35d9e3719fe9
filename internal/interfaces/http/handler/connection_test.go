package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sellerhub/backend/internal/application/connect"
	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/interfaces/http/middleware"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeConnectService struct {
	views        []connect.ConnectionView
	authURL      string
	completed    *connect.ConnectionView
	gotState     string
	gotCode      string
	listErr      error
	getErr       error
	beginErr     error
	completeErr  error
	disconnected bool
	disconnErr   error
}

func (f *fakeConnectService) List(_ context.Context, _ uuid.UUID) ([]connect.ConnectionView, error) {
	return f.views, f.listErr
}

func (f *fakeConnectService) Get(_ context.Context, _ uuid.UUID, _ connection.ProviderCode) (*connect.ConnectionView, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.views) == 0 {
		return nil, connection.ErrConnectionNotFound
	}
	return &f.views[0], nil
}

func (f *fakeConnectService) BeginAuthorization(_ context.Context, _ uuid.UUID, _ connection.ProviderCode) (string, error) {
	return f.authURL, f.beginErr
}

func (f *fakeConnectService) CompleteAuthorization(_ context.Context, state, code string) (*connect.ConnectionView, error) {
	f.gotState, f.gotCode = state, code
	return f.completed, f.completeErr
}

func (f *fakeConnectService) Disconnect(_ context.Context, _ uuid.UUID, _ connection.ProviderCode) error {
	if f.disconnErr != nil {
		return f.disconnErr
	}
	f.disconnected = true
	return nil
}

type fakeConnectionSyncer struct {
	syncErr   error
	synced    bool
	events    []connection.SyncEvent
	gotLimit  int
	historyErr error
}

func (f *fakeConnectionSyncer) SyncOne(_ context.Context, _ uuid.UUID, _ connection.ProviderCode) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.synced = true
	return nil
}

func (f *fakeConnectionSyncer) History(_ context.Context, _ uuid.UUID, _ connection.ProviderCode, limit int) ([]connection.SyncEvent, error) {
	f.gotLimit = limit
	return f.events, f.historyErr
}

func newConnectionRouter(tenantID uuid.UUID, svc ConnectService, syncer ConnectionSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if tenantID != uuid.Nil {
			c.Set(middleware.JWTTenantIDKey, tenantID.String())
		}
		c.Next()
	})

	h := NewConnectionHandler(svc, syncer)
	r.GET("/api/v1/connections", h.List)
	r.GET("/api/v1/connections/:provider", h.Get)
	r.POST("/api/v1/connections/:provider/authorize", h.Authorize)
	r.GET("/api/v1/connections/:provider/callback", h.Callback)
	r.DELETE("/api/v1/connections/:provider", h.Disconnect)
	r.POST("/api/v1/connections/:provider/sync", h.Resync)
	r.GET("/api/v1/connections/:provider/events", h.Events)
	return r
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestConnectionHandler_List(t *testing.T) {
	svc := &fakeConnectService{views: []connect.ConnectionView{
		{ID: uuid.New(), Provider: connection.ProviderCodeEtsy, Status: connection.StatusConnected},
	}}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ETSY")
}

func TestConnectionHandler_List_MissingTenant(t *testing.T) {
	r := newConnectionRouter(uuid.Nil, &fakeConnectService{}, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConnectionHandler_Get_NotFound(t *testing.T) {
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/etsy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestConnectionHandler_UnknownProviderRejected(t *testing.T) {
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/amazon", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Authorize(t *testing.T) {
	svc := &fakeConnectService{authURL: "https://www.etsy.com/oauth/connect?state=abc"}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/etsy/authorize", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authorization_url")
	assert.Contains(t, w.Body.String(), "etsy.com")
}

func TestConnectionHandler_Authorize_AlreadyConnected(t *testing.T) {
	svc := &fakeConnectService{beginErr: connection.ErrAlreadyConnected}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/etsy/authorize", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_ALREADY_EXISTS")
}

func TestConnectionHandler_Callback(t *testing.T) {
	view := &connect.ConnectionView{Provider: connection.ProviderCodeEtsy, Status: connection.StatusConnected}
	svc := &fakeConnectService{completed: view}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/etsy/callback?state=abc&code=xyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", svc.gotState)
	assert.Equal(t, "xyz", svc.gotCode)
}

func TestConnectionHandler_Callback_ShopifyCompositeCode(t *testing.T) {
	view := &connect.ConnectionView{Provider: connection.ProviderCodeShopify, Status: connection.StatusConnected}
	svc := &fakeConnectService{completed: view}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/connections/shopify/callback?state=abc&code=xyz&shop=demo.myshopify.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "demo.myshopify.com|xyz", svc.gotCode)
}

func TestConnectionHandler_Callback_ShopifyRequiresShop(t *testing.T) {
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/shopify/callback?state=abc&code=xyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Callback_MissingParams(t *testing.T) {
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/etsy/callback?state=abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Callback_ReplayedState(t *testing.T) {
	svc := &fakeConnectService{completeErr: connection.ErrStateNotFound}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/etsy/callback?state=abc&code=xyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestConnectionHandler_Disconnect(t *testing.T) {
	svc := &fakeConnectService{}
	r := newConnectionRouter(uuid.New(), svc, &fakeConnectionSyncer{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/connections/etsy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.disconnected)
}

func TestConnectionHandler_Resync(t *testing.T) {
	syncer := &fakeConnectionSyncer{}
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, syncer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/etsy/sync", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, syncer.synced)
}

func TestConnectionHandler_Resync_NotConnected(t *testing.T) {
	syncer := &fakeConnectionSyncer{syncErr: connection.ErrNotConnected}
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, syncer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/etsy/sync", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INVALID_STATE")
}

func TestConnectionHandler_Events_PassesLimit(t *testing.T) {
	syncer := &fakeConnectionSyncer{}
	r := newConnectionRouter(uuid.New(), &fakeConnectService{}, syncer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections/etsy/events?limit=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, syncer.gotLimit)
}
