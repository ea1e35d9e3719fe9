package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/unified"
)

// Shopify webhook headers
const (
	ShopifyHmacHeader    = "X-Shopify-Hmac-Sha256"
	ShopifyShopHeader    = "X-Shopify-Shop-Domain"
	ShopifyTopicHeader   = "X-Shopify-Topic"
	ShopifyEventIDHeader = "X-Shopify-Event-Id"
)

// ErrShopifyMalformedCode indicates a code exchange input without a shop domain
var ErrShopifyMalformedCode = errors.New("shopify: exchange input must be shop_domain|code")

const (
	shopifyDefaultScope = "read_orders,read_products"
	shopifyAPIVersion   = "2024-01"
	shopifyPageLimit    = 250

	// credentialSeparator joins the shop domain and the Admin API token in
	// the stored access credential. Every Admin API call is shop-scoped, so
	// the token alone is not a usable credential.
	credentialSeparator = "|"
)

// ShopifyConfig holds the Shopify OAuth application settings
type ShopifyConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scope         string
	WebhookSecret string
	// APIScheme lets tests point the adapter at a plain-HTTP server
	APIScheme      string
	TimeoutSeconds int
}

// Validate checks that required settings are present and fills defaults
func (c *ShopifyConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("shopify: client ID is required")
	}
	if c.ClientSecret == "" {
		return errors.New("shopify: client secret is required")
	}
	if c.RedirectURL == "" {
		return errors.New("shopify: redirect URL is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("shopify: webhook secret is required")
	}
	if c.Scope == "" {
		c.Scope = shopifyDefaultScope
	}
	if c.APIScheme == "" {
		c.APIScheme = "https"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// ShopifyAdapter integrates Shopify. Shopify is push-based with a static
// Admin API token that never expires and is never refreshed. The stored
// access credential is "shop_domain|token" because the Admin API is
// shop-scoped; the OAuth callback carries both and they travel together.
type ShopifyAdapter struct {
	config     *ShopifyConfig
	httpClient *http.Client
}

// NewShopifyAdapter creates a new Shopify adapter with the given configuration
func NewShopifyAdapter(config *ShopifyConfig) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ShopifyAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Metadata returns the adapter-declared behavior flags
func (a *ShopifyAdapter) Metadata() connection.Metadata {
	return connection.Metadata{
		Code:           connection.ProviderCodeShopify,
		DisplayName:    "Shopify",
		RotationPolicy: connection.RotationPolicyStatic,
		SupportsPush:   true,
	}
}

// BuildAuthorizationURL builds the merchant consent URL. The shop-specific
// host is substituted client-side; Shopify does not use PKCE.
func (a *ShopifyAdapter) BuildAuthorizationURL(state string, pkce *connection.PKCEChallenge) (string, error) {
	values := url.Values{}
	values.Set("client_id", a.config.ClientID)
	values.Set("scope", a.config.Scope)
	values.Set("redirect_uri", a.config.RedirectURL)
	values.Set("state", state)

	return fmt.Sprintf("%s://{shop}/admin/oauth/authorize?%s", a.config.APIScheme, values.Encode()), nil
}

// ExchangeCode exchanges an authorization code for a static token. The input
// is "shop_domain|code" assembled by the OAuth callback, which receives both.
func (a *ShopifyAdapter) ExchangeCode(ctx context.Context, code, pkceVerifier string) (*connection.TokenSet, error) {
	shop, authCode, ok := strings.Cut(code, credentialSeparator)
	if !ok || shop == "" || authCode == "" {
		return nil, ErrShopifyMalformedCode
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     a.config.ClientID,
		"client_secret": a.config.ClientSecret,
		"code":          authCode,
	})
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to encode exchange payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s://%s/admin/oauth/access_token", a.config.APIScheme, shop)
	body, err := doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to create exchange request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("shopify: failed to parse exchange response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("shopify: exchange response missing access token")
	}

	return &connection.TokenSet{
		AccessToken:       shop + credentialSeparator + resp.AccessToken,
		ExternalAccountID: shop,
		ExternalAccountName: strings.TrimSuffix(shop, ".myshopify.com"),
		// Static token: no refresh token, no expiry.
	}, nil
}

// Refresh always fails: Shopify tokens are static and never rotate
func (a *ShopifyAdapter) Refresh(ctx context.Context, refreshToken string) (*connection.TokenSet, error) {
	return nil, fmt.Errorf("%w: shopify tokens are static", connection.ErrRefreshFailed)
}

// Revoke deletes the app grant on the shop, invalidating the token
func (a *ShopifyAdapter) Revoke(ctx context.Context, accessToken string) error {
	shop, token, ok := splitShopCredential(accessToken)
	if !ok {
		return nil
	}

	endpoint := fmt.Sprintf("%s://%s/admin/api_permissions/current.json", a.config.APIScheme, shop)
	_, err := doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to create revoke request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", token)
		return req, nil
	})
	return err
}

// splitShopCredential splits a stored "shop_domain|token" credential
func splitShopCredential(credential string) (shop, token string, ok bool) {
	shop, token, ok = strings.Cut(credential, credentialSeparator)
	return shop, token, ok && shop != "" && token != ""
}

// ---------------------------------------------------------------------------
// Delta fetch
// ---------------------------------------------------------------------------

// FetchDeltas pulls orders and products updated in the (since, until] window.
// Push delivery is the primary path for Shopify; this pull path backs manual
// re-syncs and recovery after webhook gaps.
func (a *ShopifyAdapter) FetchDeltas(ctx context.Context, accessToken string, since, until time.Time) ([]connection.RawItem, error) {
	shop, token, ok := splitShopCredential(accessToken)
	if !ok {
		return nil, fmt.Errorf("%w: malformed shopify credential", connection.ErrProviderAuthFailed)
	}

	currency, err := a.fetchShopCurrency(ctx, shop, token)
	if err != nil {
		return nil, err
	}

	orders, err := a.fetchOrders(ctx, shop, token, since, until)
	if err != nil {
		return nil, err
	}

	products, err := a.fetchProducts(ctx, shop, token, since, until, currency)
	if err != nil {
		return nil, err
	}

	return append(orders, products...), nil
}

// fetchShopCurrency reads the shop's operating currency, needed because
// product payloads carry prices without a currency code.
func (a *ShopifyAdapter) fetchShopCurrency(ctx context.Context, shop, token string) (string, error) {
	endpoint := fmt.Sprintf("%s://%s/admin/api/%s/shop.json", a.config.APIScheme, shop, shopifyAPIVersion)
	body, err := a.doGet(ctx, token, endpoint)
	if err != nil {
		return "", err
	}

	var resp struct {
		Shop struct {
			Currency string `json:"currency"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("shopify: failed to parse shop response: %w", err)
	}
	return resp.Shop.Currency, nil
}

// fetchOrders pages through orders updated in the window
func (a *ShopifyAdapter) fetchOrders(ctx context.Context, shop, token string, since, until time.Time) ([]connection.RawItem, error) {
	var items []connection.RawItem

	sinceID := int64(0)
	for {
		endpoint := fmt.Sprintf(
			"%s://%s/admin/api/%s/orders.json?status=any&updated_at_min=%s&updated_at_max=%s&limit=%d&since_id=%d&order=id+asc",
			a.config.APIScheme, shop, shopifyAPIVersion,
			url.QueryEscape(since.UTC().Format(time.RFC3339)),
			url.QueryEscape(until.UTC().Format(time.RFC3339)),
			shopifyPageLimit, sinceID)

		body, err := a.doGet(ctx, token, endpoint)
		if err != nil {
			return nil, err
		}

		var page struct {
			Orders []json.RawMessage `json:"orders"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("shopify: failed to parse orders page: %w", err)
		}

		for _, raw := range page.Orders {
			var order struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(raw, &order); err != nil || order.ID == 0 {
				continue
			}
			sinceID = order.ID
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindOrder,
				ExternalID: strconv.FormatInt(order.ID, 10),
				Payload:    raw,
			})
		}

		if len(page.Orders) < shopifyPageLimit {
			return items, nil
		}
	}
}

// fetchProducts pages through products updated in the window, wrapping each
// payload with the shop currency for mapping.
func (a *ShopifyAdapter) fetchProducts(ctx context.Context, shop, token string, since, until time.Time, currency string) ([]connection.RawItem, error) {
	var items []connection.RawItem

	sinceID := int64(0)
	for {
		endpoint := fmt.Sprintf(
			"%s://%s/admin/api/%s/products.json?updated_at_min=%s&updated_at_max=%s&limit=%d&since_id=%d",
			a.config.APIScheme, shop, shopifyAPIVersion,
			url.QueryEscape(since.UTC().Format(time.RFC3339)),
			url.QueryEscape(until.UTC().Format(time.RFC3339)),
			shopifyPageLimit, sinceID)

		body, err := a.doGet(ctx, token, endpoint)
		if err != nil {
			return nil, err
		}

		var page struct {
			Products []json.RawMessage `json:"products"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("shopify: failed to parse products page: %w", err)
		}

		for _, raw := range page.Products {
			var product struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(raw, &product); err != nil || product.ID == 0 {
				continue
			}
			sinceID = product.ID

			wrapped, err := json.Marshal(shopifyProductEnvelope{Product: raw, Currency: currency})
			if err != nil {
				continue
			}
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindProduct,
				ExternalID: strconv.FormatInt(product.ID, 10),
				Payload:    wrapped,
			})
		}

		if len(page.Products) < shopifyPageLimit {
			return items, nil
		}
	}
}

// doGet performs an authenticated GET against the Shopify Admin API
func (a *ShopifyAdapter) doGet(ctx context.Context, token, endpoint string) ([]byte, error) {
	return doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to create request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", token)
		return req, nil
	})
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// VerifyWebhook checks the HMAC-SHA256 signature Shopify computes over the
// raw body with the app's webhook secret. Comparison is constant-time.
func (a *ShopifyAdapter) VerifyWebhook(headers http.Header, body []byte) bool {
	provided := headers.Get(ShopifyHmacHeader)
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.config.WebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}

// ParseWebhookEvent parses a verified webhook body into a webhook event.
// Shopify delivers one resource per webhook; the topic header tells us
// whether it is an order or a product.
func (a *ShopifyAdapter) ParseWebhookEvent(headers http.Header, body []byte) (*connection.WebhookEvent, error) {
	shop := headers.Get(ShopifyShopHeader)
	if shop == "" {
		return nil, fmt.Errorf("%w: missing shop domain header", connection.ErrMalformedPayload)
	}

	var resource struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resource); err != nil || resource.ID == 0 {
		return nil, fmt.Errorf("%w: shopify webhook body", connection.ErrMalformedPayload)
	}
	externalID := strconv.FormatInt(resource.ID, 10)

	topic := headers.Get(ShopifyTopicHeader)

	// Webhook retries reuse the event ID, so it is the dedup key. Shopify
	// event IDs are only unique per shop, so the key is scoped with the shop
	// domain. Older deliveries without the header fall back to a
	// topic-scoped resource key, shop-scoped the same way.
	eventID := headers.Get(ShopifyEventIDHeader)
	if eventID == "" {
		eventID = topic + ":" + externalID
	}
	eventID = shop + credentialSeparator + eventID

	event := &connection.WebhookEvent{
		EventID:           eventID,
		ExternalAccountID: shop,
	}

	switch {
	case strings.HasPrefix(topic, "orders/"):
		event.Items = []connection.RawItem{{
			Kind:       connection.ItemKindOrder,
			ExternalID: externalID,
			Payload:    json.RawMessage(body),
		}}
	case strings.HasPrefix(topic, "products/"):
		wrapped, err := json.Marshal(shopifyProductEnvelope{Product: json.RawMessage(body)})
		if err != nil {
			return nil, fmt.Errorf("%w: shopify product webhook", connection.ErrMalformedPayload)
		}
		event.Items = []connection.RawItem{{
			Kind:       connection.ItemKindProduct,
			ExternalID: externalID,
			Payload:    wrapped,
		}}
	default:
		return nil, fmt.Errorf("%w: unsupported topic %q", connection.ErrMalformedPayload, topic)
	}

	return event, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// MapOrder maps a raw Shopify order into the unified schema
func (a *ShopifyAdapter) MapOrder(item connection.RawItem) (*unified.Order, error) {
	if item.Kind != connection.ItemKindOrder {
		return nil, nil
	}

	var order shopifyOrder
	if err := json.Unmarshal(item.Payload, &order); err != nil {
		return nil, fmt.Errorf("%w: shopify order: %v", connection.ErrMalformedPayload, err)
	}
	if order.ID == 0 {
		return nil, fmt.Errorf("%w: shopify order missing id", connection.ErrMalformedPayload)
	}
	if order.Currency == "" {
		return nil, fmt.Errorf("%w: shopify order missing currency", connection.ErrMalformedPayload)
	}

	result := &unified.Order{
		ExternalID:     strconv.FormatInt(order.ID, 10),
		Number:         order.Name,
		Status:         mapShopifyOrderStatus(&order),
		Currency:       order.Currency,
		TotalAmount:    parsePriceString(order.TotalPrice),
		SubtotalAmount: parsePriceString(order.SubtotalPrice),
		ShippingAmount: shopifyShippingTotal(order.ShippingLines),
		DiscountAmount: parsePriceString(order.TotalDiscounts),
		BuyerEmail:     order.Email,
		BuyerName:      strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName),
	}

	if placed, err := time.Parse(time.RFC3339, order.CreatedAt); err == nil {
		result.PlacedAt = placed.UTC()
	}
	if order.UpdatedAt != "" {
		if updated, err := time.Parse(time.RFC3339, order.UpdatedAt); err == nil {
			u := updated.UTC()
			result.ExternalUpdatedAt = &u
		}
	}

	for _, line := range order.LineItems {
		result.LineItems = append(result.LineItems, unified.OrderLineItem{
			ExternalID:        strconv.FormatInt(line.ID, 10),
			ExternalProductID: strconv.FormatInt(line.ProductID, 10),
			Title:             line.Title,
			SKU:               line.SKU,
			Quantity:          line.Quantity,
			UnitPrice:         parsePriceString(line.Price),
		})
	}

	return result, nil
}

// MapProduct maps a raw Shopify product into the unified schema. Product
// payloads carry no currency, so the fetch path wraps them with the shop
// currency; an unwrapped payload without one is malformed.
func (a *ShopifyAdapter) MapProduct(item connection.RawItem) (*unified.Product, error) {
	if item.Kind != connection.ItemKindProduct {
		return nil, nil
	}

	var envelope shopifyProductEnvelope
	if err := json.Unmarshal(item.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: shopify product envelope: %v", connection.ErrMalformedPayload, err)
	}

	raw := envelope.Product
	if raw == nil {
		raw = item.Payload
	}

	var product shopifyProduct
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("%w: shopify product: %v", connection.ErrMalformedPayload, err)
	}
	if product.ID == 0 {
		return nil, fmt.Errorf("%w: shopify product missing id", connection.ErrMalformedPayload)
	}

	currency := envelope.Currency
	if currency == "" {
		currency = "USD"
	}

	result := &unified.Product{
		ExternalID:  strconv.FormatInt(product.ID, 10),
		Title:       product.Title,
		Description: product.BodyHTML,
		Status:      mapShopifyProductStatus(product.Status),
		Currency:    currency,
	}

	if len(product.Variants) > 0 {
		v := product.Variants[0]
		result.SKU = v.SKU
		result.Price = parsePriceString(v.Price)
		for _, variant := range product.Variants {
			result.Quantity += variant.InventoryQuantity
		}
	}
	if product.Image.Src != "" {
		result.ImageURL = product.Image.Src
	}
	if product.UpdatedAt != "" {
		if updated, err := time.Parse(time.RFC3339, product.UpdatedAt); err == nil {
			u := updated.UTC()
			result.ExternalUpdatedAt = &u
		}
	}

	return result, nil
}

// mapShopifyOrderStatus derives the unified status from Shopify's split
// financial / fulfillment / lifecycle fields
func mapShopifyOrderStatus(order *shopifyOrder) unified.OrderStatus {
	if order.CancelledAt != "" {
		return unified.OrderStatusCancelled
	}
	switch order.FinancialStatus {
	case "refunded", "partially_refunded":
		return unified.OrderStatusRefunded
	case "pending", "authorized":
		return unified.OrderStatusPending
	case "voided":
		return unified.OrderStatusCancelled
	}
	if order.ClosedAt != "" {
		return unified.OrderStatusCompleted
	}
	if order.FulfillmentStatus == "fulfilled" || order.FulfillmentStatus == "partial" {
		return unified.OrderStatusShipped
	}
	return unified.OrderStatusPaid
}

// mapShopifyProductStatus maps Shopify product statuses onto the unified set
func mapShopifyProductStatus(status string) unified.ProductStatus {
	switch status {
	case "active":
		return unified.ProductStatusActive
	case "draft":
		return unified.ProductStatusDraft
	default:
		return unified.ProductStatusArchived
	}
}

// shopifyShippingTotal sums the shipping line prices
func shopifyShippingTotal(lines []shopifyShippingLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(parsePriceString(line.Price))
	}
	return total
}

// parsePriceString parses a Shopify decimal string, zero on absence
func parsePriceString(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// shopifyProductEnvelope pairs a raw product payload with the shop currency
type shopifyProductEnvelope struct {
	Product  json.RawMessage `json:"product"`
	Currency string          `json:"currency,omitempty"`
}

type shopifyOrder struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Currency          string `json:"currency"`
	TotalPrice        string `json:"total_price"`
	SubtotalPrice     string `json:"subtotal_price"`
	TotalDiscounts    string `json:"total_discounts"`
	FinancialStatus   string `json:"financial_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	CancelledAt       string `json:"cancelled_at"`
	ClosedAt          string `json:"closed_at"`
	Customer          struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
	ShippingLines []shopifyShippingLine `json:"shipping_lines"`
	LineItems     []shopifyLineItem     `json:"line_items"`
}

type shopifyShippingLine struct {
	Price string `json:"price"`
}

type shopifyLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type shopifyProduct struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Status   string `json:"status"`
	Variants []struct {
		SKU               string `json:"sku"`
		Price             string `json:"price"`
		InventoryQuantity int    `json:"inventory_quantity"`
	} `json:"variants"`
	Image struct {
		Src string `json:"src"`
	} `json:"image"`
	UpdatedAt string `json:"updated_at"`
}

// Ensure ShopifyAdapter implements the push provider contract
var _ connection.PushAdapter = (*ShopifyAdapter)(nil)
