package unified

import "errors"

var (
	ErrInvalidTenantID      = errors.New("unified: invalid tenant ID")
	ErrInvalidConnectionID  = errors.New("unified: invalid connection ID")
	ErrMissingExternalID    = errors.New("unified: missing external ID")
	ErrMissingCurrency      = errors.New("unified: missing currency code")
	ErrInvalidCurrency      = errors.New("unified: invalid currency code")
	ErrInvalidOrderStatus   = errors.New("unified: invalid order status")
	ErrInvalidProductStatus = errors.New("unified: invalid product status")
	ErrOrderNotFound        = errors.New("unified: order not found")
	ErrProductNotFound      = errors.New("unified: product not found")
)
