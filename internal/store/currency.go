package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crypto-exchange/internal/models"
)

// CurrencyStore manages the currency reference data that orders and trades
// point at by foreign key.
type CurrencyStore struct {
	pg *PostgresStore
}

func NewCurrencyStore(pg *PostgresStore) *CurrencyStore {
	return &CurrencyStore{pg: pg}
}

func (s *CurrencyStore) Create(ctx context.Context, c *models.Currency) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO currencies (id, code, name, precision, min_amount, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pg.db.ExecContext(
		ctx,
		query,
		c.ID,
		c.Code,
		c.Name,
		c.Precision,
		c.MinAmount,
		c.IsActive,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (s *CurrencyStore) GetByID(ctx context.Context, id string) (*models.Currency, error) {
	query := `
		SELECT id, code, name, precision, min_amount, is_active, created_at, updated_at
		FROM currencies
		WHERE id = $1
	`
	return s.scanOne(s.pg.db.QueryRowContext(ctx, query, id))
}

func (s *CurrencyStore) GetByCode(ctx context.Context, code string) (*models.Currency, error) {
	query := `
		SELECT id, code, name, precision, min_amount, is_active, created_at, updated_at
		FROM currencies
		WHERE code = $1
	`
	return s.scanOne(s.pg.db.QueryRowContext(ctx, query, code))
}

func (s *CurrencyStore) List(ctx context.Context, includeInactive bool) ([]*models.Currency, error) {
	query := `
		SELECT id, code, name, precision, min_amount, is_active, created_at, updated_at
		FROM currencies
	`
	if !includeInactive {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY code ASC`

	rows, err := s.pg.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []*models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Name,
			&c.Precision,
			&c.MinAmount,
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		currencies = append(currencies, &c)
	}
	return currencies, rows.Err()
}

func (s *CurrencyStore) Deactivate(ctx context.Context, code string) error {
	query := `
		UPDATE currencies
		SET is_active = false, updated_at = $1
		WHERE code = $2
	`
	_, err := s.pg.db.ExecContext(ctx, query, time.Now(), code)
	return err
}

func (s *CurrencyStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM currencies WHERE code = $1)`
	var exists bool
	err := s.pg.db.QueryRowContext(ctx, query, code).Scan(&exists)
	return exists, err
}

// SeedDefaultCurrencies inserts any missing default currencies in a single
// transaction so a partially seeded table is never observed.
func (s *CurrencyStore) SeedDefaultCurrencies(ctx context.Context, defaults []*models.Currency) (int, error) {
	seeded := 0
	err := s.pg.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range defaults {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM currencies WHERE code = $1)`, c.Code,
			).Scan(&exists); err != nil {
				return fmt.Errorf("checking currency %s: %w", c.Code, err)
			}
			if exists {
				continue
			}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO currencies (id, code, name, precision, min_amount, is_active, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				c.ID, c.Code, c.Name, c.Precision, c.MinAmount, c.IsActive, c.CreatedAt, c.UpdatedAt,
			); err != nil {
				return fmt.Errorf("creating currency %s: %w", c.Code, err)
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seeded, nil
}

func (s *CurrencyStore) scanOne(row *sql.Row) (*models.Currency, error) {
	var c models.Currency
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.Precision,
		&c.MinAmount,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
