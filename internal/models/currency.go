package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is reference data; orders and trades point at currencies by ID.
type Currency struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Precision int             `json:"precision"`
	MinAmount decimal.Decimal `json:"min_amount"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewCurrency(code, name string, precision int, minAmount string) *Currency {
	now := time.Now()
	return &Currency{
		Code:      code,
		Name:      name,
		Precision: precision,
		MinAmount: decimal.RequireFromString(minAmount),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Currency) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.New("currency code is required")
	}
	if len(c.Code) > 10 {
		return errors.New("currency code must be 10 characters or less")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("currency name is required")
	}
	if c.Precision < 0 || c.Precision > 18 {
		return errors.New("precision must be between 0 and 18")
	}
	if c.MinAmount.IsNegative() {
		return errors.New("min_amount cannot be negative")
	}
	return nil
}

var DefaultCurrencies = []*Currency{
	NewCurrency("USD", "US Dollar", 2, "0.01"),
	NewCurrency("BTC", "Bitcoin", 8, "0.00000001"),
	NewCurrency("ETH", "Ethereum", 18, "0.000000000000000001"),
	NewCurrency("EUR", "Euro", 2, "0.01"),
	NewCurrency("USDT", "Tether", 2, "0.01"),
	NewCurrency("BNB", "Binance Coin", 8, "0.00000001"),
}
