package unified_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sellerhub/backend/internal/domain/unified"
)

func validOrder() *unified.Order {
	return &unified.Order{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		ConnectionID: uuid.New(),
		ExternalID:   "etsy-1001",
		Status:       unified.OrderStatusPaid,
		Currency:     "USD",
		TotalAmount:  decimal.NewFromInt(42),
	}
}

func TestOrderValidate(t *testing.T) {
	assert.NoError(t, validOrder().Validate())

	o := validOrder()
	o.TenantID = uuid.Nil
	assert.ErrorIs(t, o.Validate(), unified.ErrInvalidTenantID)

	o = validOrder()
	o.ConnectionID = uuid.Nil
	assert.ErrorIs(t, o.Validate(), unified.ErrInvalidConnectionID)

	o = validOrder()
	o.ExternalID = ""
	assert.ErrorIs(t, o.Validate(), unified.ErrMissingExternalID)

	o = validOrder()
	o.Status = "DELIVERED"
	assert.ErrorIs(t, o.Validate(), unified.ErrInvalidOrderStatus)

	o = validOrder()
	o.Currency = ""
	assert.ErrorIs(t, o.Validate(), unified.ErrMissingCurrency)

	o = validOrder()
	o.Currency = "usd"
	assert.ErrorIs(t, o.Validate(), unified.ErrInvalidCurrency)

	o = validOrder()
	o.Currency = "DOLLARS"
	assert.ErrorIs(t, o.Validate(), unified.ErrInvalidCurrency)
}

func TestProductValidate(t *testing.T) {
	p := &unified.Product{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		ConnectionID: uuid.New(),
		ExternalID:   "shopify-55",
		Status:       unified.ProductStatusActive,
		Currency:     "CAD",
		Price:        decimal.NewFromFloat(19.99),
	}
	assert.NoError(t, p.Validate())

	p.Status = "LIVE"
	assert.ErrorIs(t, p.Validate(), unified.ErrInvalidProductStatus)
	p.Status = unified.ProductStatusActive

	p.Currency = "XX"
	assert.ErrorIs(t, p.Validate(), unified.ErrInvalidCurrency)
}

func TestValidCurrency(t *testing.T) {
	for _, code := range []string{"USD", "EUR", "GBP", "CAD", "JPY"} {
		assert.True(t, unified.ValidCurrency(code), code)
	}
	for _, code := range []string{"", "US", "usd", "ZZZ", "USDT"} {
		assert.False(t, unified.ValidCurrency(code), code)
	}
}
