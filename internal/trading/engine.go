package trading

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crypto-exchange/internal/models"
)

// Engine matches a newly placed taker order against resting maker orders
// under price-time priority. It is a single-pass loop over the eligible
// counter-orders the store returns; it never mutates the taker's persisted
// amount, only records trades and advances maker fills.
type Engine struct {
	orders  OrderStore
	trades  TradeStore
	logger  *zap.Logger
	onTrade func(*models.Trade)
}

func NewEngine(orders OrderStore, trades TradeStore, logger *zap.Logger) *Engine {
	return &Engine{
		orders: orders,
		trades: trades,
		logger: logger,
	}
}

// SetTradeCallback installs a hook invoked after each committed trade, used
// for event publication, caching and metrics at the edge.
func (e *Engine) SetTradeCallback(cb func(*models.Trade)) {
	e.onTrade = cb
}

// Match executes the taker against the book and returns the trades created,
// best price first. A failure mid-loop returns *MatchingError carrying the
// trades already committed; those stay committed.
func (e *Engine) Match(ctx context.Context, taker *models.Order) ([]*models.Trade, error) {
	makers, err := e.orders.FindEligibleCounterOrders(ctx, taker)
	if err != nil {
		return nil, &MatchingError{OrderID: taker.ID, Err: err}
	}

	var executed []*models.Trade
	remaining := taker.Remaining()

	for _, maker := range makers {
		if !remaining.IsPositive() {
			break
		}

		makerRemaining := maker.Remaining()
		if !makerRemaining.IsPositive() {
			continue
		}

		price, ok := executionPrice(taker, maker)
		if !ok {
			// Two market orders carry no reference price; they never match.
			e.logger.Warn("skipping unpriceable match",
				zap.String("taker_id", taker.ID),
				zap.String("maker_id", maker.ID))
			continue
		}

		amount := decimal.Min(remaining, makerRemaining)

		makerStatus := models.PartiallyFilled
		if makerRemaining.Equal(amount) {
			makerStatus = models.Filled
		}

		// Claim the maker fill before recording the trade: the guarded
		// update is what enforces that summed trade amounts never exceed
		// the maker's original amount, and that a concurrently cancelled
		// maker takes no further part in this pass.
		if _, err := e.orders.ApplyFill(ctx, maker.ID, amount, makerStatus); err != nil {
			if IsInvalidState(err) {
				e.logger.Warn("maker changed underneath match, skipping",
					zap.String("maker_id", maker.ID),
					zap.Error(err))
				continue
			}
			return executed, &MatchingError{OrderID: taker.ID, Trades: executed, Err: err}
		}

		trade := buildTrade(taker, maker, amount, price)
		if err := e.trades.Create(ctx, trade); err != nil {
			return executed, &MatchingError{OrderID: taker.ID, Trades: executed, Err: err}
		}

		executed = append(executed, trade)
		remaining = remaining.Sub(amount)

		e.logger.Info("trade executed",
			zap.String("trade_id", trade.ID),
			zap.String("buy_order_id", trade.BuyOrderID),
			zap.String("sell_order_id", trade.SellOrderID),
			zap.String("amount", trade.Amount.String()),
			zap.String("price", trade.Price.String()))

		if e.onTrade != nil {
			e.onTrade(trade)
		}
	}

	return executed, nil
}

// executionPrice picks the maker's limit price when it has one, otherwise
// falls back to the taker's. Neither side priced means no match.
func executionPrice(taker, maker *models.Order) (decimal.Decimal, bool) {
	if maker.Price.Valid {
		return maker.Price.Decimal, true
	}
	if taker.Price.Valid {
		return taker.Price.Decimal, true
	}
	return decimal.Zero, false
}

// buildTrade assigns the buy and sell halves by each order's side and uses
// the taker's currency pair as the canonical pair for the record.
func buildTrade(taker, maker *models.Order, amount, price decimal.Decimal) *models.Trade {
	t := &models.Trade{
		BuyCurrencyID:  taker.BuyCurrencyID,
		SellCurrencyID: taker.SellCurrencyID,
		Amount:         amount,
		Price:          price,
		ExecutedAt:     time.Now(),
	}
	if taker.Side == models.Buy {
		t.BuyOrderID = taker.ID
		t.BuyUserID = taker.UserID
		t.SellOrderID = maker.ID
		t.SellUserID = maker.UserID
	} else {
		t.SellOrderID = taker.ID
		t.SellUserID = taker.UserID
		t.BuyOrderID = maker.ID
		t.BuyUserID = maker.UserID
	}
	return t
}
