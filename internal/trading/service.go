package trading

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crypto-exchange/internal/models"
)

// Service is the order lifecycle manager: it owns order creation, the
// synchronous matching pass, status transitions and cancellation. Stores are
// injected; the service holds no global handles.
type Service struct {
	orders OrderStore
	trades TradeStore
	engine *Engine
	locks  *pairLocks
	logger *zap.Logger
}

func NewService(orders OrderStore, trades TradeStore, engine *Engine, logger *zap.Logger) *Service {
	return &Service{
		orders: orders,
		trades: trades,
		engine: engine,
		locks:  newPairLocks(),
		logger: logger,
	}
}

// PlaceOrder validates and persists a new order, runs one matching pass and
// applies the resulting status. The order always survives a matching
// failure: the returned error then is a *MatchingError alongside the order
// in its last-known-good status and whatever trades were committed.
func (s *Service) PlaceOrder(ctx context.Context, userID string, intent models.OrderIntent) (*models.Order, []*models.Trade, error) {
	s.logger.Info("placing order",
		zap.String("user_id", userID),
		zap.String("side", string(intent.Side)),
		zap.String("type", string(intent.Type)))

	if intent.BuyCurrencyID == intent.SellCurrencyID {
		return nil, nil, &ValidationError{Field: "currencies", Message: "buy and sell currencies must be different"}
	}
	if intent.Type == models.Limit && (!intent.Price.Valid || !intent.Price.Decimal.IsPositive()) {
		return nil, nil, &ValidationError{Field: "price", Message: "limit orders require a positive price"}
	}
	if intent.Type == models.Market {
		// Market orders carry no price; drop whatever the caller sent.
		intent.Price = decimal.NullDecimal{}
	}

	order := &models.Order{
		UserID:         userID,
		Side:           intent.Side,
		Type:           intent.Type,
		BuyCurrencyID:  intent.BuyCurrencyID,
		SellCurrencyID: intent.SellCurrencyID,
		Amount:         intent.Amount,
		Price:          intent.Price,
	}
	if err := order.Validate(); err != nil {
		return nil, nil, &ValidationError{Message: err.Error()}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("order creation failed", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, err
	}
	s.logger.Info("order created", zap.String("order_id", order.ID), zap.String("user_id", userID))

	unlock := s.locks.Lock(pairKey(order.BuyCurrencyID, order.SellCurrencyID))
	defer unlock()

	trades, matchErr := s.engine.Match(ctx, order)
	if matchErr != nil {
		s.logger.Warn("order execution failed",
			zap.String("order_id", order.ID),
			zap.Error(matchErr))
	}

	totalExecuted := decimal.Zero
	for _, t := range trades {
		totalExecuted = totalExecuted.Add(t.Amount)
	}

	if totalExecuted.IsPositive() {
		status := models.PartiallyFilled
		if totalExecuted.GreaterThanOrEqual(order.Amount) {
			status = models.Filled
		}
		updated, err := s.orders.ApplyFill(ctx, order.ID, totalExecuted, status)
		if err != nil {
			s.logger.Error("failed to apply taker fill",
				zap.String("order_id", order.ID),
				zap.Error(err))
			if matchErr == nil {
				matchErr = &MatchingError{OrderID: order.ID, Trades: trades, Err: err}
			}
		} else {
			order = updated
		}
	}

	return order, trades, matchErr
}

// UpdateOrder patches a PENDING order owned by userID.
func (s *Service) UpdateOrder(ctx context.Context, userID, orderID string, patch models.OrderPatch) (*models.Order, error) {
	s.logger.Info("updating order", zap.String("user_id", userID), zap.String("order_id", orderID))

	existing, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, &UnauthorizedError{UserID: userID, Resource: "order", ID: orderID}
	}
	if existing.Status != models.Pending {
		return nil, &InvalidStateError{OrderID: orderID, Status: existing.Status, Op: "update"}
	}

	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "amount must be greater than 0"}
	}
	if patch.Price != nil && !patch.Price.IsPositive() {
		return nil, &ValidationError{Field: "price", Message: "price must be greater than 0"}
	}

	return s.orders.Update(ctx, orderID, patch)
}

// CancelOrder moves a resting order owned by userID to CANCELLED.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	s.logger.Info("cancelling order", zap.String("user_id", userID), zap.String("order_id", orderID))

	order, err := s.orders.Cancel(ctx, orderID, userID)
	if err != nil {
		s.logger.Warn("order cancellation failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("order_id", orderID))
	return order, nil
}

func (s *Service) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) GetUserOrders(ctx context.Context, userID string, filter models.OrderFilter, page models.PageRequest) ([]*models.Order, *models.PageMeta, error) {
	return s.orders.ListByUser(ctx, userID, filter, page)
}

func (s *Service) GetUserTrades(ctx context.Context, userID string, filter models.TradeFilter, page models.PageRequest) ([]*models.Trade, *models.PageMeta, error) {
	return s.trades.ListByUser(ctx, userID, filter, page)
}
