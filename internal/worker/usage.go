package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"creditgate/internal/model"
	"creditgate/internal/repository"
)

// UsageRecorder persists one spend event durably.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, event model.UsageEvent) error
}

// UsageWorker listens for usage events published after successful spends
// and syncs them to the Postgres usage log and balance.
type UsageWorker struct {
	recorder UsageRecorder
	natsConn *nats.Conn
}

func NewUsageWorker(recorder UsageRecorder, nc *nats.Conn) *UsageWorker {
	return &UsageWorker{recorder: recorder, natsConn: nc}
}

// Start subscribes and blocks until ctx is cancelled. QueueSubscribe keeps
// each event on exactly one worker when several API instances run.
func (w *UsageWorker) Start(ctx context.Context) error {
	sub, err := w.natsConn.QueueSubscribe(repository.UsageTopic, "meter_workers", func(m *nats.Msg) {
		w.process(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe: %w", err)
	}

	slog.Info("usage worker is running")

	<-ctx.Done()

	slog.Info("usage worker shutting down, draining subscription")
	return sub.Drain()
}

// process records one published usage event. Recording runs detached from
// ctx's cancellation: Drain keeps delivering in-flight messages after
// shutdown cancels the run context, and those writes still have to land.
func (w *UsageWorker) process(ctx context.Context, data []byte) {
	var event model.UsageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal usage event", "error", err)
		return
	}

	if err := w.recorder.RecordUsage(context.WithoutCancel(ctx), event); err != nil {
		slog.Error("worker: failed to record usage event",
			"account_id", event.AccountID,
			"key", event.IdempotencyKey,
			"error", err,
		)
		return
	}

	slog.Info("worker: usage event recorded",
		"account_id", event.AccountID,
		"operation", string(event.Operation),
		"key", event.IdempotencyKey,
	)
}

// Stop implements the infrastructure.Server interface (shutdown is via ctx).
func (w *UsageWorker) Stop(ctx context.Context) error {
	return nil
}
