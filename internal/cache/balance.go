// Package cache provides a Redis read-through cache in front of the
// wallet ledger. Balance reads are hot on the validation path; a short
// TTL keeps them cheap while debits invalidate eagerly so a successful
// purchase is immediately reflected.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"airvault/internal/types"
)

// DefaultBalanceTTL bounds staleness when invalidation is missed (e.g. a
// funding handled by another service).
const DefaultBalanceTTL = 30 * time.Second

// BalanceCache decorates a types.WalletLedger with cached balance reads.
// It implements types.WalletLedger itself, so callers are unaware of the
// cache. Redis unavailability degrades to the underlying ledger.
type BalanceCache struct {
	ledger types.WalletLedger
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewBalanceCache wraps the ledger with a Redis cache.
func NewBalanceCache(ledger types.WalletLedger, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BalanceCache{ledger: ledger, rdb: rdb, ttl: ttl, logger: logger}
}

func balanceKey(userID string) string {
	return fmt.Sprintf("wallet:balance:%s", userID)
}

// GetBalance returns the cached balance, falling through to the ledger on
// miss and populating the cache with the fresh value.
func (c *BalanceCache) GetBalance(ctx context.Context, userID string) (int64, error) {
	key := balanceKey(userID)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if balance, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return balance, nil
		}
		// A corrupt entry is dropped and refetched.
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "balance cache read failed; falling through",
			"user_id", userID, "error", err)
	}

	balance, err := c.ledger.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := c.rdb.Set(ctx, key, strconv.FormatInt(balance, 10), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "balance cache write failed",
			"user_id", userID, "error", err)
	}
	return balance, nil
}

// Debit forwards to the ledger and invalidates the cached balance on
// success, so the next read reflects the debit.
func (c *BalanceCache) Debit(ctx context.Context, userID string, amount int64) error {
	if err := c.ledger.Debit(ctx, userID, amount); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, balanceKey(userID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "balance cache invalidation failed",
			"user_id", userID, "error", err)
	}
	return nil
}

// Invalidate drops the cached balance for a user. Used when an external
// signal (e.g. a funding webhook) reports the balance changed.
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, balanceKey(userID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "balance cache invalidation failed",
			"user_id", userID, "error", err)
	}
}
