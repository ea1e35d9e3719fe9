package providers

import (
	"context"
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

// ErrEtsyPKCERequired indicates an authorization URL was requested without a PKCE challenge
var ErrEtsyPKCERequired = errors.New("etsy: PKCE challenge is required")

const (
	etsyDefaultAuthURL = "https://www.etsy.com/oauth/connect"
	etsyDefaultAPIURL  = "https://api.etsy.com/v3"
	etsyDefaultScope   = "transactions_r listings_r shops_r"
	etsyPageLimit      = 100
)

// EtsyConfig holds the Etsy OAuth application settings
type EtsyConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	AuthBaseURL    string
	APIBaseURL     string
	Scope          string
	TimeoutSeconds int
}

// Validate checks that required settings are present and fills defaults
func (c *EtsyConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("etsy: client ID is required")
	}
	if c.RedirectURL == "" {
		return errors.New("etsy: redirect URL is required")
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = etsyDefaultAuthURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = etsyDefaultAPIURL
	}
	if c.Scope == "" {
		c.Scope = etsyDefaultScope
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// EtsyAdapter integrates the Etsy marketplace. Etsy is poll-based with dual
// credential rotation: every refresh invalidates both the access and the
// refresh token, so a persisted-but-stale refresh token is unusable.
type EtsyAdapter struct {
	config     *EtsyConfig
	httpClient *http.Client
}

// NewEtsyAdapter creates a new Etsy adapter with the given configuration
func NewEtsyAdapter(config *EtsyConfig) (*EtsyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EtsyAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Metadata returns the adapter-declared behavior flags
func (a *EtsyAdapter) Metadata() connection.Metadata {
	return connection.Metadata{
		Code:           connection.ProviderCodeEtsy,
		DisplayName:    "Etsy",
		RotationPolicy: connection.RotationPolicyDual,
		RefreshBuffer:  5 * time.Minute,
		SupportsPush:   false,
		PollInterval:   15 * time.Minute,
	}
}

// BuildAuthorizationURL builds the Etsy authorization URL. Etsy mandates PKCE.
func (a *EtsyAdapter) BuildAuthorizationURL(state string, pkce *connection.PKCEChallenge) (string, error) {
	if pkce == nil {
		return "", ErrEtsyPKCERequired
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", a.config.ClientID)
	values.Set("redirect_uri", a.config.RedirectURL)
	values.Set("scope", a.config.Scope)
	values.Set("state", state)
	values.Set("code_challenge", pkce.Challenge)
	values.Set("code_challenge_method", pkce.Method)

	return a.config.AuthBaseURL + "?" + values.Encode(), nil
}

// ExchangeCode exchanges an authorization code for a token set
func (a *EtsyAdapter) ExchangeCode(ctx context.Context, code, pkceVerifier string) (*connection.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", a.config.ClientID)
	form.Set("redirect_uri", a.config.RedirectURL)
	form.Set("code", code)
	form.Set("code_verifier", pkceVerifier)

	return a.requestToken(ctx, form)
}

// Refresh exchanges a refresh token for a fresh token set. Etsy rotates both
// tokens on every refresh, so the returned set always carries a new refresh
// token.
func (a *EtsyAdapter) Refresh(ctx context.Context, refreshToken string) (*connection.TokenSet, error) {
	if refreshToken == "" {
		return nil, connection.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.config.ClientID)
	form.Set("refresh_token", refreshToken)

	tokens, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connection.ErrRefreshFailed, err)
	}
	return tokens, nil
}

// Revoke is a no-op: Etsy does not expose a revocation endpoint, tokens
// lapse on their own expiry.
func (a *EtsyAdapter) Revoke(ctx context.Context, accessToken string) error {
	return nil
}

// requestToken posts to the Etsy token endpoint and normalizes the response
func (a *EtsyAdapter) requestToken(ctx context.Context, form url.Values) (*connection.TokenSet, error) {
	endpoint := a.config.APIBaseURL + "/public/oauth/token"

	body, err := doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("etsy: failed to create token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp etsyTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("etsy: failed to parse token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("etsy: token response missing access token")
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	return &connection.TokenSet{
		AccessToken:       resp.AccessToken,
		RefreshToken:      resp.RefreshToken,
		ExpiresAt:         &expiresAt,
		ExternalAccountID: etsyUserID(resp.AccessToken),
	}, nil
}

// etsyUserID extracts the numeric user ID prefix Etsy embeds in its tokens
func etsyUserID(accessToken string) string {
	if idx := strings.IndexByte(accessToken, '.'); idx > 0 {
		return accessToken[:idx]
	}
	return ""
}

// ---------------------------------------------------------------------------
// Delta fetch
// ---------------------------------------------------------------------------

// FetchDeltas pulls receipts and listings modified in the (since, until] window
func (a *EtsyAdapter) FetchDeltas(ctx context.Context, accessToken string, since, until time.Time) ([]connection.RawItem, error) {
	shopID, err := a.fetchShopID(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	items, err := a.fetchReceipts(ctx, accessToken, shopID, since, until)
	if err != nil {
		return nil, err
	}

	listings, err := a.fetchListings(ctx, accessToken, shopID, since)
	if err != nil {
		return nil, err
	}

	return append(items, listings...), nil
}

// fetchShopID resolves the token owner's shop
func (a *EtsyAdapter) fetchShopID(ctx context.Context, accessToken string) (int64, error) {
	userID := etsyUserID(accessToken)
	if userID == "" {
		return 0, fmt.Errorf("%w: malformed access token", connection.ErrProviderAuthFailed)
	}

	endpoint := fmt.Sprintf("%s/application/users/%s/shops", a.config.APIBaseURL, userID)
	body, err := a.doGet(ctx, accessToken, endpoint)
	if err != nil {
		return 0, err
	}

	var shop etsyShop
	if err := json.Unmarshal(body, &shop); err != nil {
		return 0, fmt.Errorf("etsy: failed to parse shop response: %w", err)
	}
	if shop.ShopID == 0 {
		return 0, fmt.Errorf("etsy: token owner has no shop")
	}
	return shop.ShopID, nil
}

// fetchReceipts pages through receipts modified in the window
func (a *EtsyAdapter) fetchReceipts(ctx context.Context, accessToken string, shopID int64, since, until time.Time) ([]connection.RawItem, error) {
	var items []connection.RawItem

	for offset := 0; ; offset += etsyPageLimit {
		endpoint := fmt.Sprintf(
			"%s/application/shops/%d/receipts?min_last_modified=%d&max_last_modified=%d&limit=%d&offset=%d",
			a.config.APIBaseURL, shopID, since.Unix(), until.Unix(), etsyPageLimit, offset)

		body, err := a.doGet(ctx, accessToken, endpoint)
		if err != nil {
			return nil, err
		}

		var page etsyListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("etsy: failed to parse receipts page: %w", err)
		}

		for _, raw := range page.Results {
			var receipt etsyReceipt
			if err := json.Unmarshal(raw, &receipt); err != nil || receipt.ReceiptID == 0 {
				continue
			}
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindOrder,
				ExternalID: strconv.FormatInt(receipt.ReceiptID, 10),
				Payload:    raw,
			})
		}

		if len(page.Results) < etsyPageLimit {
			return items, nil
		}
	}
}

// fetchListings pages through listings updated since the cursor
func (a *EtsyAdapter) fetchListings(ctx context.Context, accessToken string, shopID int64, since time.Time) ([]connection.RawItem, error) {
	var items []connection.RawItem

	for offset := 0; ; offset += etsyPageLimit {
		endpoint := fmt.Sprintf(
			"%s/application/shops/%d/listings?state=active&sort_on=updated&sort_order=desc&limit=%d&offset=%d",
			a.config.APIBaseURL, shopID, etsyPageLimit, offset)

		body, err := a.doGet(ctx, accessToken, endpoint)
		if err != nil {
			return nil, err
		}

		var page etsyListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("etsy: failed to parse listings page: %w", err)
		}

		reachedCursor := false
		for _, raw := range page.Results {
			var listing etsyListing
			if err := json.Unmarshal(raw, &listing); err != nil || listing.ListingID == 0 {
				continue
			}
			// Listings arrive newest-first; stop at the first one older
			// than the cursor.
			if listing.LastModified > 0 && time.Unix(listing.LastModified, 0).Before(since) {
				reachedCursor = true
				break
			}
			items = append(items, connection.RawItem{
				Kind:       connection.ItemKindProduct,
				ExternalID: strconv.FormatInt(listing.ListingID, 10),
				Payload:    raw,
			})
		}

		if reachedCursor || len(page.Results) < etsyPageLimit {
			return items, nil
		}
	}
}

// doGet performs an authenticated GET against the Etsy API
func (a *EtsyAdapter) doGet(ctx context.Context, accessToken, endpoint string) ([]byte, error) {
	return doWithRetry(ctx, a.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("etsy: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("x-api-key", a.config.ClientID)
		return req, nil
	})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// MapOrder maps a raw Etsy receipt into the unified schema
func (a *EtsyAdapter) MapOrder(item connection.RawItem) (*unified.Order, error) {
	if item.Kind != connection.ItemKindOrder {
		return nil, nil
	}

	var receipt etsyReceipt
	if err := json.Unmarshal(item.Payload, &receipt); err != nil {
		return nil, fmt.Errorf("%w: etsy receipt: %v", connection.ErrMalformedPayload, err)
	}
	if receipt.ReceiptID == 0 {
		return nil, fmt.Errorf("%w: etsy receipt missing receipt_id", connection.ErrMalformedPayload)
	}

	order := &unified.Order{
		ExternalID:     strconv.FormatInt(receipt.ReceiptID, 10),
		Number:         strconv.FormatInt(receipt.ReceiptID, 10),
		Status:         mapEtsyReceiptStatus(receipt.Status),
		Currency:       receipt.GrandTotal.CurrencyCode,
		TotalAmount:    receipt.GrandTotal.Decimal(),
		SubtotalAmount: receipt.Subtotal.Decimal(),
		ShippingAmount: receipt.TotalShippingCost.Decimal(),
		DiscountAmount: receipt.DiscountAmt.Decimal(),
		BuyerName:      receipt.Name,
		BuyerEmail:     receipt.BuyerEmail,
		PlacedAt:       time.Unix(receipt.CreatedTimestamp, 0).UTC(),
	}

	if receipt.UpdatedTimestamp > 0 {
		updated := time.Unix(receipt.UpdatedTimestamp, 0).UTC()
		order.ExternalUpdatedAt = &updated
	}

	for _, txn := range receipt.Transactions {
		order.LineItems = append(order.LineItems, unified.OrderLineItem{
			ExternalID:        strconv.FormatInt(txn.TransactionID, 10),
			ExternalProductID: strconv.FormatInt(txn.ListingID, 10),
			Title:             txn.Title,
			SKU:               txn.SKU,
			Quantity:          txn.Quantity,
			UnitPrice:         txn.Price.Decimal(),
		})
	}

	return order, nil
}

// MapProduct maps a raw Etsy listing into the unified schema
func (a *EtsyAdapter) MapProduct(item connection.RawItem) (*unified.Product, error) {
	if item.Kind != connection.ItemKindProduct {
		return nil, nil
	}

	var listing etsyListing
	if err := json.Unmarshal(item.Payload, &listing); err != nil {
		return nil, fmt.Errorf("%w: etsy listing: %v", connection.ErrMalformedPayload, err)
	}
	if listing.ListingID == 0 {
		return nil, fmt.Errorf("%w: etsy listing missing listing_id", connection.ErrMalformedPayload)
	}

	product := &unified.Product{
		ExternalID:  strconv.FormatInt(listing.ListingID, 10),
		Title:       listing.Title,
		Description: listing.Description,
		Status:      mapEtsyListingState(listing.State),
		Currency:    listing.Price.CurrencyCode,
		Price:       listing.Price.Decimal(),
		Quantity:    listing.Quantity,
	}

	if len(listing.SKUs) > 0 {
		product.SKU = listing.SKUs[0]
	}
	if len(listing.Images) > 0 {
		product.ImageURL = listing.Images[0].URLFullSize
	}
	if listing.LastModified > 0 {
		updated := time.Unix(listing.LastModified, 0).UTC()
		product.ExternalUpdatedAt = &updated
	}

	return product, nil
}

// mapEtsyReceiptStatus maps Etsy receipt statuses onto the unified set
func mapEtsyReceiptStatus(status string) unified.OrderStatus {
	switch strings.ToLower(status) {
	case "open", "payment processing", "unpaid":
		return unified.OrderStatusPending
	case "paid":
		return unified.OrderStatusPaid
	case "shipped", "partially shipped":
		return unified.OrderStatusShipped
	case "completed":
		return unified.OrderStatusCompleted
	case "canceled":
		return unified.OrderStatusCancelled
	case "fully refunded", "partially refunded":
		return unified.OrderStatusRefunded
	default:
		return unified.OrderStatusPending
	}
}

// mapEtsyListingState maps Etsy listing states onto the unified set
func mapEtsyListingState(state string) unified.ProductStatus {
	switch strings.ToLower(state) {
	case "active":
		return unified.ProductStatusActive
	case "draft", "inactive":
		return unified.ProductStatusDraft
	default:
		return unified.ProductStatusArchived
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type etsyTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type etsyListResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type etsyShop struct {
	ShopID   int64  `json:"shop_id"`
	ShopName string `json:"shop_name"`
}

// etsyMoney is Etsy's fixed-point money representation
type etsyMoney struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

// Decimal converts the fixed-point amount into a decimal value
func (m etsyMoney) Decimal() decimal.Decimal {
	if m.Divisor == 0 {
		return decimal.NewFromInt(m.Amount)
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(m.Divisor))
}

type etsyReceipt struct {
	ReceiptID         int64             `json:"receipt_id"`
	Status            string            `json:"status"`
	Name              string            `json:"name"`
	BuyerEmail        string            `json:"buyer_email"`
	CreatedTimestamp  int64             `json:"created_timestamp"`
	UpdatedTimestamp  int64             `json:"updated_timestamp"`
	GrandTotal        etsyMoney         `json:"grandtotal"`
	Subtotal          etsyMoney         `json:"subtotal"`
	TotalShippingCost etsyMoney         `json:"total_shipping_cost"`
	DiscountAmt       etsyMoney         `json:"discount_amt"`
	Transactions      []etsyTransaction `json:"transactions"`
}

type etsyTransaction struct {
	TransactionID int64     `json:"transaction_id"`
	ListingID     int64     `json:"listing_id"`
	Title         string    `json:"title"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	Price         etsyMoney `json:"price"`
}

type etsyListing struct {
	ListingID    int64            `json:"listing_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	State        string           `json:"state"`
	Quantity     int              `json:"quantity"`
	Price        etsyMoney        `json:"price"`
	SKUs         []string         `json:"skus"`
	LastModified int64            `json:"last_modified_timestamp"`
	Images       []etsyListingImg `json:"images"`
}

type etsyListingImg struct {
	URLFullSize string `json:"url_fullxfull"`
}

// Ensure EtsyAdapter implements the provider contract
var _ connection.ProviderAdapter = (*EtsyAdapter)(nil)
