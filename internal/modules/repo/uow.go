package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"

	DefaultTxAttempts = 3
)

// Tx exposes repositories bound to one open transaction.
type Tx interface {
	Assets() AssetRepo
	Tags() TagRepo
	Activities() ActivityRepo
}

// UnitOfWork runs fn inside a single database transaction. fn's writes are
// committed together or not at all; fn may be invoked more than once when the
// transaction is retried, so it must not have side effects outside tx.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type gormTx struct{ db *gorm.DB }

func (t gormTx) Assets() AssetRepo { return NewAssetRepo(t.db) }
func (t gormTx) Tags() TagRepo { return NewTagRepo(t.db) }
func (t gormTx) Activities() ActivityRepo { return NewActivityRepo(t.db) }

type unitOfWork struct {
	db       *gorm.DB
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

func NewUnitOfWork(db *gorm.DB, log *zap.Logger) UnitOfWork {
	return &unitOfWork{db: db, log: log, attempts: DefaultTxAttempts, backoff: 25 * time.Millisecond}
}

func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var lastErr error
	for i := 0; i < u.attempts; i++ {
		if i > 0 {
			u.log.Warn("retrying transaction",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", u.attempts),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return fmt.Errorf("transaction aborted before retry: %w", ctx.Err())
			case <-time.After(u.backoff * time.Duration(i)):
			}
		}

		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, gormTx{db: tx})
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", u.attempts, lastErr)
}

// IsRetryable reports whether err is a PostgreSQL serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
