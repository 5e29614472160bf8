package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DedupStore tracks processed message ids so order intents delivered more
// than once are only executed once.
type DedupStore struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupDone chan struct{}
}

type DedupConfig struct {
	MessageTTL      time.Duration
	CleanupInterval time.Duration
}

func DefaultDedupConfig() *DedupConfig {
	return &DedupConfig{
		MessageTTL:      7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

func NewDedupStore(db *sql.DB, config *DedupConfig, logger *zap.Logger) *DedupStore {
	if config == nil {
		config = DefaultDedupConfig()
	}

	s := &DedupStore{
		db:          db,
		logger:      logger,
		cleanupDone: make(chan struct{}),
	}

	go s.startCleanup(config.CleanupInterval)

	return s
}

func (s *DedupStore) Stop() {
	close(s.cleanupDone)
}

func (s *DedupStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.cleanupDone:
			return
		case <-ticker.C:
			count, err := s.CleanupExpired(context.Background())
			if err != nil {
				s.logger.Warn("dedup cleanup failed", zap.Error(err))
			} else if count > 0 {
				s.logger.Info("cleaned up expired message records", zap.Int("count", count))
			}
		}
	}
}

// TryProcess reports whether the caller won the right to process messageID.
// The claim is a single conflict-free insert, so exactly one of any number
// of concurrent deliveries sees true; a false result with nil error means
// another delivery holds the claim.
func (s *DedupStore) TryProcess(ctx context.Context, messageID, eventType string) (bool, error) {
	query := `
		INSERT INTO processed_messages (message_id, event_type, expires_at)
		VALUES ($1, $2, NOW() + INTERVAL '7 days')
		ON CONFLICT (message_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, messageID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to claim message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows == 1, nil
}

// Release drops a claim so a redelivery can retry the message after a
// transient processing failure.
func (s *DedupStore) Release(ctx context.Context, messageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("failed to release message claim: %w", err)
	}
	return nil
}

func (s *DedupStore) CleanupExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired messages: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
