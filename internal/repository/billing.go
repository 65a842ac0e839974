package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"creditgate/internal/model"
)

// BillingRepo stores the purchase history and the set of processed payment
// webhook events.
type BillingRepo struct {
	dbPool *pgxpool.Pool
}

func NewBillingRepo(db *pgxpool.Pool) *BillingRepo {
	return &BillingRepo{dbPool: db}
}

// AppendEntry records one completed purchase.
func (r *BillingRepo) AppendEntry(ctx context.Context, entry model.BillingEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO billing_entries (id, account_id, tokens, amount_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.dbPool.Exec(ctx, query,
		entry.ID, entry.AccountID, entry.Tokens, entry.AmountCents, entry.Currency, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert billing entry: %w", err)
	}
	return nil
}

// ListEntries returns up to limit purchases for the account, newest first.
func (r *BillingRepo) ListEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, account_id, tokens, amount_cents, currency, created_at
		FROM billing_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.dbPool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list billing entries: %w", err)
	}
	defer rows.Close()

	var entries []model.BillingEntry
	for rows.Next() {
		var e model.BillingEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Tokens, &e.AmountCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan billing entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPaymentEvent claims a webhook event id. It returns false when the
// event was already processed, which callers use to skip duplicate credits.
func (r *BillingRepo) MarkPaymentEvent(ctx context.Context, eventID string) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, received_at)
		VALUES ($1, now())
		ON CONFLICT (event_id) DO NOTHING`
	tag, err := r.dbPool.Exec(ctx, query, eventID)
	if err != nil {
		return false, fmt.Errorf("mark payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
