package models

import "github.com/shopspring/decimal"

// OrderIntent is a validated request to place an order. The messaging layer
// owns wire-level decoding; the trading core checks the business invariants.
type OrderIntent struct {
	Side           Side                `json:"side"`
	Type           OrderType           `json:"type"`
	BuyCurrencyID  string              `json:"buy_currency_id"`
	SellCurrencyID string              `json:"sell_currency_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Price          decimal.NullDecimal `json:"price"`
}

// OrderPatch carries the fields a user may change on a PENDING order.
// Nil fields are left untouched.
type OrderPatch struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}
