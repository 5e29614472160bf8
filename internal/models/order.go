package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

type Status string

const (
	Pending         Status = "PENDING"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
)

// Order is a buy or sell intent between two currencies. Amount is the
// original size and never changes after creation; FilledAmount tracks the
// executed portion and is only advanced transactionally alongside trade
// inserts.
type Order struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Side           Side                `json:"side"`
	Type           OrderType           `json:"type"`
	BuyCurrencyID  string              `json:"buy_currency_id"`
	SellCurrencyID string              `json:"sell_currency_id"`
	Amount         decimal.Decimal     `json:"amount"`
	FilledAmount   decimal.Decimal     `json:"filled_amount"`
	Price          decimal.NullDecimal `json:"price"`
	Status         Status              `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	ExecutedAt     *time.Time          `json:"executed_at,omitempty"`
}

func (o *Order) Validate() error {
	if o.UserID == "" {
		return errors.New("user_id is required")
	}
	if !o.Side.IsValid() {
		return errors.New("side must be 'BUY' or 'SELL'")
	}
	if !o.Type.IsValid() {
		return errors.New("type must be 'MARKET' or 'LIMIT'")
	}
	if o.BuyCurrencyID == "" || o.SellCurrencyID == "" {
		return errors.New("buy and sell currency ids are required")
	}
	if o.BuyCurrencyID == o.SellCurrencyID {
		return errors.New("buy and sell currencies must be different")
	}
	if !o.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if o.FilledAmount.IsNegative() {
		return errors.New("filled amount cannot be negative")
	}
	if o.FilledAmount.GreaterThan(o.Amount) {
		return errors.New("filled amount cannot exceed total amount")
	}
	if o.Type == Limit && (!o.Price.Valid || !o.Price.Decimal.IsPositive()) {
		return errors.New("limit orders require a positive price")
	}
	if o.Status != "" && !o.Status.IsValid() {
		return errors.New("invalid status")
	}
	return nil
}

// Remaining returns the unfilled quantity of the order.
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the counter side used when querying resting orders.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t OrderType) IsValid() bool {
	return t == Market || t == Limit
}

func (st Status) IsValid() bool {
	return st == Pending || st == PartiallyFilled || st == Filled || st == Cancelled
}

// IsTerminal reports whether no further transitions are permitted.
func (st Status) IsTerminal() bool {
	return st == Filled || st == Cancelled
}

// IsResting reports whether the order is still awaiting a counterparty.
func (st Status) IsResting() bool {
	return st == Pending || st == PartiallyFilled
}
