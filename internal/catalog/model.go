package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product identifies a distributable good.
type Product struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	DefaultUnit string              `json:"default_unit"`
	Description string              `json:"description,omitempty"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ProductInput registers or updates a product.
type ProductInput struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Type        string           `json:"type" validate:"required,max=60"`
	DefaultUnit string           `json:"default_unit" validate:"required,max=20"`
	Description string           `json:"description" validate:"max=500"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// Customer is a distribution counterpart.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerInput creates or replaces a customer.
type CustomerInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"omitempty,email,max=200"`
	Phone    string `json:"phone" validate:"max=40"`
	Address  string `json:"address" validate:"max=300"`
	IsActive *bool  `json:"is_active"`
}
