package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crypto-exchange/internal/models"
	"crypto-exchange/internal/trading"
)

const tradeColumns = `id, buy_order_id, sell_order_id, buy_user_id, sell_user_id,
	buy_currency_id, sell_currency_id, amount, price, executed_at`

// TradeStore is the PostgreSQL implementation of trading.TradeStore.
type TradeStore struct {
	db *sql.DB
}

func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) Create(ctx context.Context, t *models.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now()
	}

	query := `
		INSERT INTO trades (id, buy_order_id, sell_order_id, buy_user_id, sell_user_id, buy_currency_id, sell_currency_id, amount, price, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.BuyOrderID,
		t.SellOrderID,
		t.BuyUserID,
		t.SellUserID,
		t.BuyCurrencyID,
		t.SellCurrencyID,
		t.Amount,
		t.Price,
		t.ExecutedAt,
	)
	if err != nil {
		return &trading.PersistenceError{Op: "create trade", Err: err}
	}
	return nil
}

var tradeSortColumns = map[string]string{
	"executed_at": "executed_at",
	"amount":      "amount",
	"price":       "price",
}

func (s *TradeStore) ListByUser(ctx context.Context, userID string, filter models.TradeFilter, page models.PageRequest) ([]*models.Trade, *models.PageMeta, error) {
	page = page.Normalize()

	where := []string{"(buy_user_id = $1 OR sell_user_id = $1)"}
	args := []interface{}{userID}

	if filter.CurrencyID != "" {
		args = append(args, filter.CurrencyID)
		where = append(where, fmt.Sprintf("(buy_currency_id = $%d OR sell_currency_id = $%d)", len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("executed_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("executed_at <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM trades WHERE ` + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, nil, &trading.PersistenceError{Op: "count trades", Err: err}
	}

	sortCol, ok := tradeSortColumns[page.SortBy]
	if !ok {
		sortCol = "executed_at"
	}
	direction := "DESC"
	if page.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM trades WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		tradeColumns, whereClause, sortCol, direction, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, &trading.PersistenceError{Op: "list trades", Err: err}
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(
			&t.ID,
			&t.BuyOrderID,
			&t.SellOrderID,
			&t.BuyUserID,
			&t.SellUserID,
			&t.BuyCurrencyID,
			&t.SellCurrencyID,
			&t.Amount,
			&t.Price,
			&t.ExecutedAt,
		); err != nil {
			return nil, nil, &trading.PersistenceError{Op: "scan trade", Err: err}
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &trading.PersistenceError{Op: "list trades", Err: err}
	}

	return trades, models.NewPageMeta(page, total), nil
}
