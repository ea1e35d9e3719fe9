package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellerhub/backend/internal/application/connect"
	"github.com/sellerhub/backend/internal/domain/connection"
)

// ConnectService is the slice of the connect application service the
// handler uses.
type ConnectService interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]connect.ConnectionView, error)
	Get(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (*connect.ConnectionView, error)
	BeginAuthorization(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (string, error)
	CompleteAuthorization(ctx context.Context, state, code string) (*connect.ConnectionView, error)
	Disconnect(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) error
}

// ConnectionSyncer is the slice of the sync orchestrator the handler uses.
type ConnectionSyncer interface {
	SyncOne(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) error
	History(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode, limit int) ([]connection.SyncEvent, error)
}

// ConnectionHandler serves the tenant-facing connection lifecycle API
type ConnectionHandler struct {
	BaseHandler
	connections ConnectService
	sync        ConnectionSyncer
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connections ConnectService, syncService ConnectionSyncer) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		sync:        syncService,
	}
}

// AuthorizeResponse carries the provider authorization URL the frontend
// should redirect the merchant to.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// List returns every connection of the calling tenant.
// GET /api/v1/connections
func (h *ConnectionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}

	views, err := h.connections.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, views)
}

// Get returns a single connection.
// GET /api/v1/connections/:provider
func (h *ConnectionHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	view, err := h.connections.Get(c.Request.Context(), tenantID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Authorize starts the OAuth handshake for a provider.
// POST /api/v1/connections/:provider/authorize
func (h *ConnectionHandler) Authorize(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	authURL, err := h.connections.BeginAuthorization(c.Request.Context(), tenantID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AuthorizeResponse{AuthorizationURL: authURL})
}

// Callback finishes the OAuth handshake from the provider redirect.
// GET /api/v1/connections/:provider/callback
func (h *ConnectionHandler) Callback(c *gin.Context) {
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		h.BadRequest(c, "state and code query parameters are required")
		return
	}

	// Shopify scopes tokens to a shop, so the shop domain rides along
	// with the authorization code.
	if provider == connection.ProviderCodeShopify {
		shop := c.Query("shop")
		if shop == "" {
			h.BadRequest(c, "shop query parameter is required")
			return
		}
		code = shop + "|" + code
	}

	view, err := h.connections.CompleteAuthorization(c.Request.Context(), state, code)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Disconnect revokes and clears a connection's credentials.
// DELETE /api/v1/connections/:provider
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.connections.Disconnect(c.Request.Context(), tenantID, provider); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Resync runs an on-demand pull for one connection.
// POST /api/v1/connections/:provider/sync
func (h *ConnectionHandler) Resync(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.sync.SyncOne(c.Request.Context(), tenantID, provider); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Events returns the recent sync history of a connection.
// GET /api/v1/connections/:provider/events
func (h *ConnectionHandler) Events(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity is missing")
		return
	}
	provider, err := getProvider(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	events, err := h.sync.History(c.Request.Context(), tenantID, provider, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, events)
}
