package trading

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crypto-exchange/internal/models"
)

// memoryStore implements OrderStore and TradeStore with the same eligibility,
// ordering and guard semantics as the PostgreSQL stores, so engine and
// service tests exercise the real matching contract.
type memoryStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	trades []*models.Trade
	seq    int
	base   time.Time

	// failTradeCreate makes the n-th trade insert fail (1-based); 0 disables.
	failTradeCreate int
	tradeCreates    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders: make(map[string]*models.Order),
		base:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) nextTime() time.Time {
	m.seq++
	return m.base.Add(time.Duration(m.seq) * time.Second)
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.ExecutedAt != nil {
		t := *o.ExecutedAt
		c.ExecutedAt = &t
	}
	return &c
}

func (m *memoryStore) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nextTime()
	o.ID = fmt.Sprintf("ord-%d", m.seq)
	o.Status = models.Pending
	o.FilledAmount = decimal.Zero
	o.CreatedAt = now
	o.UpdatedAt = now

	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	return cloneOrder(o), nil
}

func (m *memoryStore) FindEligibleCounterOrders(_ context.Context, taker *models.Order) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var makers []*models.Order
	for _, o := range m.orders {
		if o.ID == taker.ID || o.UserID == taker.UserID {
			continue
		}
		if o.Side != taker.Side.Opposite() {
			continue
		}
		if o.BuyCurrencyID != taker.SellCurrencyID || o.SellCurrencyID != taker.BuyCurrencyID {
			continue
		}
		if !o.Status.IsResting() || !o.Remaining().IsPositive() {
			continue
		}
		if taker.Type == models.Limit && taker.Price.Valid {
			if !o.Price.Valid {
				continue
			}
			if taker.Side == models.Buy && o.Price.Decimal.GreaterThan(taker.Price.Decimal) {
				continue
			}
			if taker.Side == models.Sell && o.Price.Decimal.LessThan(taker.Price.Decimal) {
				continue
			}
		}
		makers = append(makers, cloneOrder(o))
	}

	sort.SliceStable(makers, func(i, j int) bool {
		a, b := makers[i], makers[j]
		if a.Price.Valid != b.Price.Valid {
			return a.Price.Valid // unpriced makers sort last
		}
		if a.Price.Valid && !a.Price.Decimal.Equal(b.Price.Decimal) {
			if taker.Side == models.Buy {
				return a.Price.Decimal.LessThan(b.Price.Decimal)
			}
			return a.Price.Decimal.GreaterThan(b.Price.Decimal)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return makers, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id string, status models.Status, expected ...models.Status) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	if len(expected) > 0 {
		allowed := false
		for _, st := range expected {
			if o.Status == st {
				allowed = true
			}
		}
		if !allowed {
			return nil, &InvalidStateError{OrderID: id, Status: o.Status, Op: "transition"}
		}
	}

	o.Status = status
	o.UpdatedAt = m.nextTime()
	if status == models.Filled && o.ExecutedAt == nil {
		t := o.UpdatedAt
		o.ExecutedAt = &t
	}
	return cloneOrder(o), nil
}

func (m *memoryStore) ApplyFill(_ context.Context, id string, amount decimal.Decimal, status models.Status) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	if !o.Status.IsResting() || o.FilledAmount.Add(amount).GreaterThan(o.Amount) {
		return nil, &InvalidStateError{OrderID: id, Status: o.Status, Op: "fill"}
	}

	o.FilledAmount = o.FilledAmount.Add(amount)
	o.Status = status
	o.UpdatedAt = m.nextTime()
	if status == models.Filled && o.ExecutedAt == nil {
		t := o.UpdatedAt
		o.ExecutedAt = &t
	}
	return cloneOrder(o), nil
}

func (m *memoryStore) Cancel(_ context.Context, id, userID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	if o.UserID != userID {
		return nil, &UnauthorizedError{UserID: userID, Resource: "order", ID: id}
	}
	if !o.Status.IsResting() {
		return nil, &InvalidStateError{OrderID: id, Status: o.Status, Op: "cancel"}
	}

	o.Status = models.Cancelled
	o.UpdatedAt = m.nextTime()
	return cloneOrder(o), nil
}

func (m *memoryStore) Update(_ context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	if o.Status != models.Pending {
		return nil, &InvalidStateError{OrderID: id, Status: o.Status, Op: "update"}
	}

	if patch.Amount != nil {
		o.Amount = *patch.Amount
	}
	if patch.Price != nil {
		o.Price = decimal.NullDecimal{Decimal: *patch.Price, Valid: true}
	}
	o.UpdatedAt = m.nextTime()
	return cloneOrder(o), nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID string, filter models.OrderFilter, page models.PageRequest) ([]*models.Order, *models.PageMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page = page.Normalize()

	var matched []*models.Order
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Side != "" && o.Side != filter.Side {
			continue
		}
		if filter.Type != "" && o.Type != filter.Type {
			continue
		}
		if filter.CurrencyID != "" && o.BuyCurrencyID != filter.CurrencyID && o.SellCurrencyID != filter.CurrencyID {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], models.NewPageMeta(page, total), nil
}

func (m *memoryStore) CreateTrade(_ context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradeCreates++
	if m.failTradeCreate > 0 && m.tradeCreates == m.failTradeCreate {
		return &PersistenceError{Op: "create trade", Err: fmt.Errorf("connection reset")}
	}

	t.ID = fmt.Sprintf("trd-%d", len(m.trades)+1)
	t.ExecutedAt = m.nextTime()
	c := *t
	m.trades = append(m.trades, &c)
	return nil
}

func (m *memoryStore) ListTradesByUser(_ context.Context, userID string, filter models.TradeFilter, page models.PageRequest) ([]*models.Trade, *models.PageMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page = page.Normalize()

	var matched []*models.Trade
	for _, t := range m.trades {
		if t.BuyUserID != userID && t.SellUserID != userID {
			continue
		}
		if filter.CurrencyID != "" && t.BuyCurrencyID != filter.CurrencyID && t.SellCurrencyID != filter.CurrencyID {
			continue
		}
		if filter.From != nil && t.ExecutedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.ExecutedAt.After(*filter.To) {
			continue
		}
		c := *t
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExecutedAt.After(matched[j].ExecutedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], models.NewPageMeta(page, total), nil
}

// tradeStoreAdapter exposes the memoryStore's trade methods under the
// TradeStore interface.
type tradeStoreAdapter struct{ *memoryStore }

func (a tradeStoreAdapter) Create(ctx context.Context, t *models.Trade) error {
	return a.CreateTrade(ctx, t)
}

func (a tradeStoreAdapter) ListByUser(ctx context.Context, userID string, filter models.TradeFilter, page models.PageRequest) ([]*models.Trade, *models.PageMeta, error) {
	return a.ListTradesByUser(ctx, userID, filter, page)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}
