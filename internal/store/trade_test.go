package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-exchange/internal/models"
	"crypto-exchange/internal/trading"
)

var tradeTestColumns = []string{
	"id", "buy_order_id", "sell_order_id", "buy_user_id", "sell_user_id",
	"buy_currency_id", "sell_currency_id", "amount", "price", "executed_at",
}

func newTradeMock(t *testing.T) (*TradeStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTradeStore(db), mock
}

func TestTradeStoreCreate(t *testing.T) {
	s, mock := newTradeMock(t)

	mock.ExpectExec("INSERT INTO trades").
		WithArgs(sqlmock.AnyArg(), "ord-b", "ord-s", "user-b", "user-s",
			"cur-btc", "cur-usd", "0.5", "42000", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tr := &models.Trade{
		BuyOrderID:     "ord-b",
		SellOrderID:    "ord-s",
		BuyUserID:      "user-b",
		SellUserID:     "user-s",
		BuyCurrencyID:  "cur-btc",
		SellCurrencyID: "cur-usd",
		Amount:         decimal.RequireFromString("0.5"),
		Price:          decimal.RequireFromString("42000"),
	}
	err := s.Create(context.Background(), tr)
	require.NoError(t, err)

	assert.NotEmpty(t, tr.ID)
	assert.False(t, tr.ExecutedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeStoreCreateFailure(t *testing.T) {
	s, mock := newTradeMock(t)

	mock.ExpectExec("INSERT INTO trades").
		WillReturnError(errors.New("connection reset"))

	tr := &models.Trade{
		BuyOrderID:  "ord-b",
		SellOrderID: "ord-s",
		BuyUserID:   "user-b",
		SellUserID:  "user-s",
		Amount:      decimal.RequireFromString("1"),
		Price:       decimal.RequireFromString("100"),
	}
	err := s.Create(context.Background(), tr)

	var pe *trading.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "create trade", pe.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeStoreListByUser(t *testing.T) {
	s, mock := newTradeMock(t)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-b", "cur-btc", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(tradeTestColumns).
		AddRow("trd-1", "ord-b", "ord-s", "user-b", "user-s",
			"cur-btc", "cur-usd", "0.5", "42000", from.Add(time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM trades WHERE (.+) ORDER BY executed_at DESC LIMIT").
		WithArgs("user-b", "cur-btc", from, 20, 0).
		WillReturnRows(rows)

	trades, meta, err := s.ListByUser(context.Background(), "user-b",
		models.TradeFilter{CurrencyID: "cur-btc", From: &from},
		models.PageRequest{})
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, "trd-1", trades[0].ID)
	assert.Equal(t, "user-s", trades[0].SellUserID)
	assert.True(t, trades[0].Amount.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(1), meta.Total)
	assert.False(t, meta.HasNext)
	assert.NoError(t, mock.ExpectationsWereMet())
}
