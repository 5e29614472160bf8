package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"crypto-exchange/internal/models"
	"crypto-exchange/internal/trading"
)

const orderColumns = `id, user_id, side, type, buy_currency_id, sell_currency_id,
	amount, filled_amount, price, status, created_at, updated_at, executed_at`

// OrderStore is the PostgreSQL implementation of trading.OrderStore.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = models.Pending
	o.FilledAmount = decimal.Zero

	query := `
		INSERT INTO orders (id, user_id, side, type, buy_currency_id, sell_currency_id, amount, filled_amount, price, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		o.ID,
		o.UserID,
		o.Side,
		o.Type,
		o.BuyCurrencyID,
		o.SellCurrencyID,
		o.Amount,
		o.FilledAmount,
		o.Price,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return &trading.PersistenceError{Op: "create order: unknown currency", Err: err}
		}
		return &trading.PersistenceError{Op: "create order", Err: err}
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &trading.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, &trading.PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}

// FindEligibleCounterOrders returns resting counter-orders in price-time
// priority order. For LIMIT takers the price filter also excludes unpriced
// (market) makers, mirroring the crossing rule: a limit order only crosses a
// priced book level.
func (s *OrderStore) FindEligibleCounterOrders(ctx context.Context, taker *models.Order) ([]*models.Order, error) {
	args := []interface{}{
		taker.Side.Opposite(),
		taker.SellCurrencyID,
		taker.BuyCurrencyID,
		taker.UserID,
		taker.ID,
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders
		WHERE side = $1
		  AND buy_currency_id = $2
		  AND sell_currency_id = $3
		  AND user_id <> $4
		  AND id <> $5
		  AND status IN ('PENDING', 'PARTIALLY_FILLED')
		  AND filled_amount < amount`)

	if taker.Type == models.Limit && taker.Price.Valid {
		if taker.Side == models.Buy {
			sb.WriteString(` AND price <= $6`)
		} else {
			sb.WriteString(` AND price >= $6`)
		}
		args = append(args, taker.Price.Decimal)
	}

	// Best price for the taker first: lowest ask for a buyer, highest bid
	// for a seller. Unpriced makers sort last either way.
	if taker.Side == models.Buy {
		sb.WriteString(` ORDER BY price ASC NULLS LAST, created_at ASC`)
	} else {
		sb.WriteString(` ORDER BY price DESC NULLS LAST, created_at ASC`)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, &trading.PersistenceError{Op: "find counter orders", Err: err}
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &trading.PersistenceError{Op: "scan counter order", Err: err}
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &trading.PersistenceError{Op: "find counter orders", Err: err}
	}
	return orders, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status models.Status, expected ...models.Status) (*models.Order, error) {
	args := []interface{}{status, id}

	var sb strings.Builder
	sb.WriteString(`UPDATE orders
		SET status = $1,
		    updated_at = NOW(),
		    executed_at = CASE WHEN $1 = 'FILLED' THEN NOW() ELSE executed_at END
		WHERE id = $2`)

	if len(expected) > 0 {
		placeholders := make([]string, len(expected))
		for i, st := range expected {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, st)
		}
		sb.WriteString(` AND status IN (` + strings.Join(placeholders, ", ") + `)`)
	}
	sb.WriteString(` RETURNING ` + orderColumns)

	o, err := scanOrder(s.db.QueryRowContext(ctx, sb.String(), args...))
	if err == sql.ErrNoRows {
		return nil, s.classifyMissedUpdate(ctx, id, "transition")
	}
	if err != nil {
		return nil, &trading.PersistenceError{Op: "update order status", Err: err}
	}
	return o, nil
}

func (s *OrderStore) ApplyFill(ctx context.Context, id string, amount decimal.Decimal, status models.Status) (*models.Order, error) {
	// Guarded so concurrent fills and cancels can never push the summed
	// trade amounts past the order's original amount.
	query := `
		UPDATE orders
		SET filled_amount = filled_amount + $1,
		    status = $2,
		    updated_at = NOW(),
		    executed_at = CASE WHEN $2 = 'FILLED' THEN NOW() ELSE executed_at END
		WHERE id = $3
		  AND status IN ('PENDING', 'PARTIALLY_FILLED')
		  AND filled_amount + $1 <= amount
		RETURNING ` + orderColumns

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, amount, status, id))
	if err == sql.ErrNoRows {
		return nil, s.classifyMissedUpdate(ctx, id, "fill")
	}
	if err != nil {
		return nil, &trading.PersistenceError{Op: "apply fill", Err: err}
	}
	return o, nil
}

func (s *OrderStore) Cancel(ctx context.Context, id, userID string) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ('PENDING', 'PARTIALLY_FILLED')
		RETURNING ` + orderColumns

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.UserID != userID {
			return nil, &trading.UnauthorizedError{UserID: userID, Resource: "order", ID: id}
		}
		return nil, &trading.InvalidStateError{OrderID: id, Status: existing.Status, Op: "cancel"}
	}
	if err != nil {
		return nil, &trading.PersistenceError{Op: "cancel order", Err: err}
	}
	return o, nil
}

func (s *OrderStore) Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	query := `
		UPDATE orders
		SET amount = COALESCE($1, amount),
		    price = COALESCE($2, price),
		    updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING'
		RETURNING ` + orderColumns

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, patch.Amount, patch.Price, id))
	if err == sql.ErrNoRows {
		return nil, s.classifyMissedUpdate(ctx, id, "update")
	}
	if err != nil {
		return nil, &trading.PersistenceError{Op: "update order", Err: err}
	}
	return o, nil
}

var orderSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"price":      "price",
	"amount":     "amount",
	"status":     "status",
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string, filter models.OrderFilter, page models.PageRequest) ([]*models.Order, *models.PageMeta, error) {
	page = page.Normalize()

	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Side != "" {
		args = append(args, filter.Side)
		where = append(where, fmt.Sprintf("side = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.CurrencyID != "" {
		args = append(args, filter.CurrencyID)
		where = append(where, fmt.Sprintf("(buy_currency_id = $%d OR sell_currency_id = $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM orders WHERE ` + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, nil, &trading.PersistenceError{Op: "count orders", Err: err}
	}

	sortCol, ok := orderSortColumns[page.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	direction := "DESC"
	if page.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, sortCol, direction, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, &trading.PersistenceError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, nil, &trading.PersistenceError{Op: "scan order", Err: err}
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &trading.PersistenceError{Op: "list orders", Err: err}
	}

	return orders, models.NewPageMeta(page, total), nil
}

// classifyMissedUpdate turns a zero-row conditional update into the typed
// error the caller can act on.
func (s *OrderStore) classifyMissedUpdate(ctx context.Context, id, op string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &trading.InvalidStateError{OrderID: id, Status: existing.Status, Op: op}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Side,
		&o.Type,
		&o.BuyCurrencyID,
		&o.SellCurrencyID,
		&o.Amount,
		&o.FilledAmount,
		&o.Price,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
