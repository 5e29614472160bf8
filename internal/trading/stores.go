package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto-exchange/internal/models"
)

// OrderStore is the persistence contract the trading core depends on.
// Implementations live in internal/store; the core never opens connections
// itself.
type OrderStore interface {
	// Create persists a new order in PENDING status and assigns its ID.
	// Unknown currency references surface as *PersistenceError.
	Create(ctx context.Context, o *models.Order) error

	// GetByID returns the order or *NotFoundError.
	GetByID(ctx context.Context, id string) (*models.Order, error)

	// FindEligibleCounterOrders returns resting orders on the opposite side
	// with the currency pair swapped, excluding the taker's own user,
	// price-compatible for LIMIT takers, ordered best price first and then
	// earliest creation time.
	FindEligibleCounterOrders(ctx context.Context, taker *models.Order) ([]*models.Order, error)

	// UpdateStatus transitions an order's status. When expected statuses are
	// given the update is conditional and fails with *InvalidStateError if
	// the current status is not among them. Transitioning to FILLED stamps
	// executed_at. Fill-driven transitions go through ApplyFill, which
	// advances filled_amount in the same update.
	UpdateStatus(ctx context.Context, id string, status models.Status, expected ...models.Status) (*models.Order, error)

	// ApplyFill atomically advances filled_amount by amount and moves the
	// order to status. The update is guarded so a fill never pushes
	// filled_amount past the original amount and never lands on a
	// cancelled or filled order; *InvalidStateError signals a lost race.
	ApplyFill(ctx context.Context, id string, amount decimal.Decimal, status models.Status) (*models.Order, error)

	// Cancel moves the order to CANCELLED if userID owns it and it is still
	// resting. *NotFoundError, *UnauthorizedError and *InvalidStateError
	// distinguish the failure cases.
	Cancel(ctx context.Context, id, userID string) (*models.Order, error)

	// Update patches amount and/or price of a PENDING order.
	Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)

	// ListByUser returns a page of the user's orders.
	ListByUser(ctx context.Context, userID string, filter models.OrderFilter, page models.PageRequest) ([]*models.Order, *models.PageMeta, error)
}

// TradeStore persists executed trades. Writes carry no cascading order
// updates; those belong to the matching engine.
type TradeStore interface {
	Create(ctx context.Context, t *models.Trade) error
	ListByUser(ctx context.Context, userID string, filter models.TradeFilter, page models.PageRequest) ([]*models.Trade, *models.PageMeta, error)
}
