package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/unified"
)

const (
	ebayDefaultAuthURL = "https://auth.ebay.com/oauth2/authorize"
	ebayDefaultAPIURL  = "https://api.ebay.com"
	ebayDefaultScope   = "https://api.ebay.com/oauth/api_scope/sell.fulfillment https://api.ebay.com/oauth/api_scope/sell.inventory"
	ebayPageLimit      = 200
)

// EbayConfig holds the eBay OAuth application settings
type EbayConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	AuthBaseURL    string
	APIBaseURL     string
	Scope          string
	TimeoutSeconds int
}

// Validate checks that required settings are present and fills defaults
func (c *EbayConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("ebay: client ID is required")
	}
	if c.ClientSecret == "" {
		return errors.New("ebay: client secret is required")
	}
	if c.RedirectURL == "" {
		return errors.New("ebay: redirect URL (RuName) is required")
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = ebayDefaultAuthURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ebayDefaultAPIURL
	}
	if c.Scope == "" {
		c.Scope = ebayDefaultScope
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// EbayAdapter integrates eBay. eBay is poll-based with single rotation:
// refreshes mint a new access token while the long-lived refresh token stays
// valid, so a refresh response carries no new refresh token.
type EbayAdapter struct {
	config     *EbayConfig
	httpClient *http.Client
}

// NewEbayAdapter creates a new eBay adapter with the given configuration
func NewEbayAdapter(config *EbayConfig) (*EbayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EbayAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Metadata returns the adapter-declared behavior flags
func (a *EbayAdapter) Metadata() connection.Metadata {
	return connection.Metadata{
		Code:           connection.ProviderCodeEbay,
		DisplayName:    "eBay",
		RotationPolicy: connection.RotationPolicySingle,
		RefreshBuffer:  10 * time.Minute,
		SupportsPush:   false,
		PollInterval:   15 * time.Minute,
	}
}

// BuildAuthorizationURL builds the eBay consent URL. eBay does not use PKCE.
func (a *EbayAdapter) BuildAuthorizationURL(state string, pkce *connection.PKCEChallenge) (string, error) {
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", a.config.ClientID)
	values.Set("redirect_uri", a.config.RedirectURL)
	values.Set("scope", a.config.Scope)
	values.Set("state", state)

	return a.config.AuthBaseURL + "?" + values.Encode(), nil
}

// ExchangeCode exchanges an authorization code for a token set
func (a *EbayAdapter) ExchangeCode(ctx context.Context, code, pkceVerifier string) (*connection.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.config.RedirectURL)

	tokens, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	// The token response carries no account identity; resolve it so push
	// routing and duplicate-connect detection have a stable key.
	if username, err := a.fetchUsername(ctx, tokens.AccessToken); err == nil {
		tokens.ExternalAccountID = username
		tokens.ExternalAccountName = username
	}

	return tokens, nil
}

// Refresh exchanges the long-lived refresh token for a fresh access token.
// The returned set has an empty refresh token, signalling the caller to keep
// the previous one.
func (a *EbayAdapter) Refresh(ctx context.Context, refreshToken string) (*connection.TokenSet, error) {
	if refreshToken == "" {
		return nil, connection.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", a.config.Scope)

	tokens, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connection.ErrRefreshFailed, err)
	}

	// Single rotation: never report a refresh token back.
	tokens.RefreshToken = ""
	return tokens, nil
}

// Revoke is a no-op: eBay revocation is managed through the seller's account
// settings, not an API endpoint.
func (a *EbayAdapter) Revoke(ctx context.Context, accessToken string) error {
	return nil
}

// requestToken posts to the eBay token endpoint with HTTP basic app credentials
func (a *EbayAdapter) requestToken(ctx context.Context, form url.Values) (*connection.TokenSet, error) {
	endpoint := a.config.APIBaseURL + "/identity/v1/oauth2/token"
	basic := base64.StdEncoding.EncodeToString([]byte(a.config.ClientID + ":" + a.config.ClientSecret))

	body, err := doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("ebay: failed to create token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Basic "+basic)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp ebayTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("ebay: token response missing access token")
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	return &connection.TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

// fetchUsername resolves the authenticated seller's username
func (a *EbayAdapter) fetchUsername(ctx context.Context, accessToken string) (string, error) {
	endpoint := a.config.APIBaseURL + "/commerce/identity/v1/user/"
	body, err := a.doGet(ctx, accessToken, endpoint)
	if err != nil {
		return "", err
	}

	var user struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("ebay: failed to parse user response: %w", err)
	}
	return user.Username, nil
}

// ---------------------------------------------------------------------------
// Delta fetch
// ---------------------------------------------------------------------------

// FetchDeltas pulls orders modified in the (since, until] window plus the
// current inventory snapshot. Inventory has no modified-date filter, but the
// keyed upsert makes re-fetching the snapshot idempotent.
func (a *EbayAdapter) FetchDeltas(ctx context.Context, accessToken string, since, until time.Time) ([]connection.RawItem, error) {
	items, err := a.fetchOrders(ctx, accessToken, since, until)
	if err != nil {
		return nil, err
	}

	inventory, err := a.fetchInventory(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return append(items, inventory...), nil
}

// fetchOrders pages through orders modified in the window
func (a *EbayAdapter) fetchOrders(ctx context.Context, accessToken string, since, until time.Time) ([]connection.RawItem, error) {
	var items []connection.RawItem

	filter := fmt.Sprintf("lastmodifieddate:[%s..%s]",
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))

	for offset := 0; ; offset += ebayPageLimit {
		endpoint := fmt.Sprintf("%s/sell/fulfillment/v1/order?filter=%s&limit=%d&offset=%d",
			a.config.APIBaseURL, url.QueryEscape(filter), ebayPageLimit, offset)

		body, err := a.doGet(ctx, accessToken, endpoint)
		if err != nil {
			return nil, err
		}

		var page struct {
			Orders []json.RawMessage `json:"orders"`
			Total  int               `json:"total"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("ebay: failed to parse orders page: %w", err)
		}

		for _, raw := range page.Orders {
			var order struct {
				OrderID string `json:"orderId"`
			}
			if err := json.Unmarshal(raw, &order); err != nil || order.OrderID == "" {
				continue
			}
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindOrder,
				ExternalID: order.OrderID,
				Payload:    raw,
			})
		}

		if len(page.Orders) < ebayPageLimit {
			return items, nil
		}
	}
}

// fetchInventory pages through the seller's inventory items
func (a *EbayAdapter) fetchInventory(ctx context.Context, accessToken string) ([]connection.RawItem, error) {
	var items []connection.RawItem

	for offset := 0; ; offset += ebayPageLimit {
		endpoint := fmt.Sprintf("%s/sell/inventory/v1/inventory_item?limit=%d&offset=%d",
			a.config.APIBaseURL, ebayPageLimit, offset)

		body, err := a.doGet(ctx, accessToken, endpoint)
		if err != nil {
			return nil, err
		}

		var page struct {
			InventoryItems []json.RawMessage `json:"inventoryItems"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("ebay: failed to parse inventory page: %w", err)
		}

		for _, raw := range page.InventoryItems {
			var item struct {
				SKU string `json:"sku"`
			}
			if err := json.Unmarshal(raw, &item); err != nil || item.SKU == "" {
				continue
			}
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindProduct,
				ExternalID: item.SKU,
				Payload:    raw,
			})
		}

		if len(page.InventoryItems) < ebayPageLimit {
			return items, nil
		}
	}
}

// doGet performs an authenticated GET against the eBay API
func (a *EbayAdapter) doGet(ctx context.Context, accessToken, endpoint string) ([]byte, error) {
	return doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("ebay: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// MapOrder maps a raw eBay order into the unified schema
func (a *EbayAdapter) MapOrder(item connection.RawItem) (*unified.Order, error) {
	if item.Kind != connection.ItemKindOrder {
		return nil, nil
	}

	var order ebayOrder
	if err := json.Unmarshal(item.Payload, &order); err != nil {
		return nil, fmt.Errorf("%w: ebay order: %v", connection.ErrMalformedPayload, err)
	}
	if order.OrderID == "" {
		return nil, fmt.Errorf("%w: ebay order missing orderId", connection.ErrMalformedPayload)
	}

	currency := order.PricingSummary.Total.Currency
	if currency == "" {
		return nil, fmt.Errorf("%w: ebay order missing currency", connection.ErrMalformedPayload)
	}

	result := &unified.Order{
		ExternalID:     order.OrderID,
		Number:         order.LegacyOrderID,
		Status:         mapEbayOrderStatus(order.OrderFulfillmentStatus, order.OrderPaymentStatus, order.CancelState),
		Currency:       currency,
		TotalAmount:    order.PricingSummary.Total.Decimal(),
		SubtotalAmount: order.PricingSummary.PriceSubtotal.Decimal(),
		ShippingAmount: order.PricingSummary.DeliveryCost.Decimal(),
		DiscountAmount: order.PricingSummary.PriceDiscount.Decimal(),
		BuyerName:      order.Buyer.Username,
	}
	if result.Number == "" {
		result.Number = order.OrderID
	}

	if placed, err := time.Parse(time.RFC3339, order.CreationDate); err == nil {
		result.PlacedAt = placed.UTC()
	}
	if updated, err := time.Parse(time.RFC3339, order.LastModifiedDate); err == nil {
		u := updated.UTC()
		result.ExternalUpdatedAt = &u
	}

	for _, line := range order.LineItems {
		result.LineItems = append(result.LineItems, unified.OrderLineItem{
			ExternalID:        line.LineItemID,
			ExternalProductID: line.LegacyItemID,
			Title:             line.Title,
			SKU:               line.SKU,
			Quantity:          line.Quantity,
			UnitPrice:         line.LineItemCost.Decimal(),
		})
	}

	return result, nil
}

// MapProduct maps a raw eBay inventory item into the unified schema
func (a *EbayAdapter) MapProduct(item connection.RawItem) (*unified.Product, error) {
	if item.Kind != connection.ItemKindProduct {
		return nil, nil
	}

	var inv ebayInventoryItem
	if err := json.Unmarshal(item.Payload, &inv); err != nil {
		return nil, fmt.Errorf("%w: ebay inventory item: %v", connection.ErrMalformedPayload, err)
	}
	if inv.SKU == "" {
		return nil, fmt.Errorf("%w: ebay inventory item missing sku", connection.ErrMalformedPayload)
	}

	currency := inv.Offer.Price.Currency
	if currency == "" {
		// Inventory records without an attached offer carry no price; the
		// marketplace default keeps the row valid until an offer appears.
		currency = "USD"
	}

	product := &unified.Product{
		ExternalID:  inv.SKU,
		Title:       inv.Product.Title,
		Description: inv.Product.Description,
		SKU:         inv.SKU,
		Status:      unified.ProductStatusActive,
		Currency:    currency,
		Price:       inv.Offer.Price.Decimal(),
		Quantity:    inv.Availability.ShipToLocationAvailability.Quantity,
	}

	if len(inv.Product.ImageURLs) > 0 {
		product.ImageURL = inv.Product.ImageURLs[0]
	}

	return product, nil
}

// mapEbayOrderStatus maps eBay fulfillment and payment statuses onto the unified set
func mapEbayOrderStatus(fulfillment, payment, cancelState string) unified.OrderStatus {
	if strings.EqualFold(cancelState, "CANCELED") {
		return unified.OrderStatusCancelled
	}
	switch strings.ToUpper(payment) {
	case "REFUNDED", "FULLY_REFUNDED":
		return unified.OrderStatusRefunded
	case "PENDING", "FAILED":
		return unified.OrderStatusPending
	}
	switch strings.ToUpper(fulfillment) {
	case "FULFILLED":
		return unified.OrderStatusCompleted
	case "IN_PROGRESS":
		return unified.OrderStatusShipped
	default:
		return unified.OrderStatusPaid
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type ebayTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ebayAmount is eBay's string-encoded money representation
type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Decimal converts the string amount into a decimal value, zero on absence
func (a ebayAmount) Decimal() decimal.Decimal {
	if a.Value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type ebayOrder struct {
	OrderID                string `json:"orderId"`
	LegacyOrderID          string `json:"legacyOrderId"`
	CreationDate           string `json:"creationDate"`
	LastModifiedDate       string `json:"lastModifiedDate"`
	OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
	OrderPaymentStatus     string `json:"orderPaymentStatus"`
	CancelState            string `json:"cancelState"`
	Buyer                  struct {
		Username string `json:"username"`
	} `json:"buyer"`
	PricingSummary struct {
		Total         ebayAmount `json:"total"`
		PriceSubtotal ebayAmount `json:"priceSubtotal"`
		DeliveryCost  ebayAmount `json:"deliveryCost"`
		PriceDiscount ebayAmount `json:"priceDiscount"`
	} `json:"pricingSummary"`
	LineItems []ebayLineItem `json:"lineItems"`
}

type ebayLineItem struct {
	LineItemID   string     `json:"lineItemId"`
	LegacyItemID string     `json:"legacyItemId"`
	Title        string     `json:"title"`
	SKU          string     `json:"sku"`
	Quantity     int        `json:"quantity"`
	LineItemCost ebayAmount `json:"lineItemCost"`
}

type ebayInventoryItem struct {
	SKU     string `json:"sku"`
	Product struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		ImageURLs   []string `json:"imageUrls"`
	} `json:"product"`
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
	// Offer is attached by the fetch path when the SKU has a published offer
	Offer struct {
		Price ebayAmount `json:"price"`
	} `json:"offer"`
}

// Ensure EbayAdapter implements the provider contract
var _ connection.ProviderAdapter = (*EbayAdapter)(nil)
