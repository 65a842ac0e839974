package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"creditgate/internal/model"
)

//go:embed spend.lua
var spendLuaScript string

// UsageTopic carries spend events from the API to the usage-log worker.
const UsageTopic = "usage.recorded"

// idemTTL keeps spend idempotency keys around long enough to absorb
// client retries without growing Redis unbounded.
const idemTTL = 24 * time.Hour

var (
	ErrAlreadyProcessed = errors.New("request already processed (idempotency)")
	ErrCacheMiss        = errors.New("balance not found in cache")
	ErrInsufficient     = errors.New("insufficient balance")
	ErrNotFound         = errors.New("account not found")
)

// LedgerRepo owns the token balance. Spends go through a Redis Lua script
// so the check-and-debit is atomic; Postgres holds the durable copy and
// warms the cache on a miss.
type LedgerRepo struct {
	redisClient *redis.Client
	dbPool      *pgxpool.Pool
	bus         MessageBus
}

func NewLedgerRepo(rdb *redis.Client, db *pgxpool.Pool, bus MessageBus) *LedgerRepo {
	return &LedgerRepo{
		redisClient: rdb,
		dbPool:      db,
		bus:         bus,
	}
}

// Spend debits amount from the account if the balance covers it. On a cache
// miss it warms the cache from Postgres and retries the script once. A
// successful debit publishes a usage event for the worker to persist.
func (r *LedgerRepo) Spend(ctx context.Context, accountID string, op model.Operation, idempotencyKey string, amount int64) (*model.ChargeResult, error) {
	result, err := r.executeLua(ctx, accountID, idempotencyKey, amount)

	if errors.Is(err, ErrCacheMiss) {
		slog.Info("cold balance cache, reading from postgres", "account_id", accountID)
		if err := r.warmUpCache(ctx, accountID); err != nil {
			return nil, err
		}
		result, err = r.executeLua(ctx, accountID, idempotencyKey, amount)
	}
	if err != nil {
		return nil, err
	}

	event := model.UsageEvent{
		AccountID:      accountID,
		Operation:      op,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	eventData, _ := json.Marshal(event)
	if err := r.bus.Publish(UsageTopic, eventData); err != nil {
		slog.Error("failed to publish usage event", "account_id", accountID, "error", err)
	}
	return result, nil
}

func (r *LedgerRepo) executeLua(ctx context.Context, accountID, idempotencyKey string, amount int64) (*model.ChargeResult, error) {
	keys := []string{balanceKey(accountID), "idem:" + idempotencyKey}
	args := []interface{}{amount, int64(idemTTL.Seconds())}

	result, err := r.redisClient.Eval(ctx, spendLuaScript, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("error executing spend script: %w", err)
	}
	return parseSpendReply(result)
}

func parseSpendReply(result interface{}) (*model.ChargeResult, error) {
	resArray, ok := result.([]interface{})
	if !ok || len(resArray) < 2 {
		return nil, errors.New("unexpected response format from Redis")
	}

	statusCode, ok := resArray[0].(int64)
	if !ok {
		return nil, errors.New("unexpected response format from Redis")
	}
	switch statusCode {
	case 1:
		newBalance, ok := resArray[1].(int64)
		if !ok {
			return nil, errors.New("unexpected response format from Redis")
		}
		return &model.ChargeResult{NewBalance: newBalance, Status: "SUCCESS"}, nil
	case 0:
		return nil, ErrAlreadyProcessed
	case -1:
		return nil, ErrCacheMiss
	case -2:
		return nil, ErrInsufficient
	default:
		return nil, fmt.Errorf("unknown status from spend script: %d", statusCode)
	}
}

// Credit adds purchased tokens to an account, creating it on first purchase,
// and refreshes the cached balance.
func (r *LedgerRepo) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	query := `
		INSERT INTO balances (account_id, amount)
		VALUES ($1, $2)
		ON CONFLICT (account_id)
		DO UPDATE SET amount = balances.amount + $2, updated_at = now()
		RETURNING amount`

	var newBalance int64
	if err := r.dbPool.QueryRow(ctx, query, accountID, amount).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("credit query: %w", err)
	}

	if err := r.redisClient.Set(ctx, balanceKey(accountID), newBalance, 0).Err(); err != nil {
		slog.Error("failed to refresh balance cache after credit", "account_id", accountID, "error", err)
	}
	return newBalance, nil
}

// Balance returns the current balance, preferring the cache and falling
// back to Postgres.
func (r *LedgerRepo) Balance(ctx context.Context, accountID string) (int64, error) {
	cached, err := r.redisClient.Get(ctx, balanceKey(accountID)).Int64()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("balance cache read: %w", err)
	}

	if err := r.warmUpCache(ctx, accountID); err != nil {
		return 0, err
	}
	return r.redisClient.Get(ctx, balanceKey(accountID)).Int64()
}

// RecordUsage persists one usage event and applies the matching debit to the
// durable balance. The idempotency key makes redelivered events a no-op.
func (r *LedgerRepo) RecordUsage(ctx context.Context, event model.UsageEvent) error {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO usage_events (account_id, operation, amount, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING`
	tag, err := tx.Exec(ctx, insert,
		event.AccountID, string(event.Operation), event.Amount, event.IdempotencyKey, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}

	if tag.RowsAffected() == 1 {
		debit := `
			UPDATE balances SET amount = amount - $2, updated_at = now()
			WHERE account_id = $1 AND amount >= $2`
		if _, err := tx.Exec(ctx, debit, event.AccountID, event.Amount); err != nil {
			return fmt.Errorf("apply usage debit: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// warmUpCache copies the durable balance into Redis. No TTL: Redis is the
// primary cache, not an expiring one.
func (r *LedgerRepo) warmUpCache(ctx context.Context, accountID string) error {
	var currentBalance int64

	query := `SELECT amount FROM balances WHERE account_id = $1`
	err := r.dbPool.QueryRow(ctx, query, accountID).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("database query error: %w", err)
	}

	if err := r.redisClient.Set(ctx, balanceKey(accountID), currentBalance, 0).Err(); err != nil {
		return fmt.Errorf("failed to save balance to Redis: %w", err)
	}
	return nil
}

func balanceKey(accountID string) string {
	return "balance:" + accountID
}
