package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Trade records a single match between a buy and a sell order. Trades are
// written exactly once per match event and never mutated afterwards.
type Trade struct {
	ID             string          `json:"id"`
	BuyOrderID     string          `json:"buy_order_id"`
	SellOrderID    string          `json:"sell_order_id"`
	BuyUserID      string          `json:"buy_user_id"`
	SellUserID     string          `json:"sell_user_id"`
	BuyCurrencyID  string          `json:"buy_currency_id"`
	SellCurrencyID string          `json:"sell_currency_id"`
	Amount         decimal.Decimal `json:"amount"`
	Price          decimal.Decimal `json:"price"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

func (t *Trade) Validate() error {
	if t.BuyOrderID == "" {
		return errors.New("buy_order_id is required")
	}
	if t.SellOrderID == "" {
		return errors.New("sell_order_id is required")
	}
	if t.BuyOrderID == t.SellOrderID {
		return errors.New("buy_order_id and sell_order_id must be different")
	}
	if t.BuyUserID == "" || t.SellUserID == "" {
		return errors.New("buy and sell user ids are required")
	}
	if t.BuyUserID == t.SellUserID {
		return errors.New("a trade cannot match orders from the same user")
	}
	if t.BuyCurrencyID == "" || t.SellCurrencyID == "" {
		return errors.New("buy and sell currency ids are required")
	}
	if !t.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if !t.Price.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	return nil
}
