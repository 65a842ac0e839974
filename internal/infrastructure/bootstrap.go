package infrastructure

import (
	"context"
	"time"

	"creditgate/internal/config"
	"creditgate/internal/jobpoll"
	"creditgate/internal/payment"
	"creditgate/internal/provider/openai"
	"creditgate/internal/provider/replicate"
	"creditgate/internal/repository"
	"creditgate/internal/service"
	transportHTTP "creditgate/internal/transport/http"
	transportNATS "creditgate/internal/transport/nats"
	"creditgate/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	// Storage and ledger
	bus := transportNATS.NewBus(nc)
	ledger := repository.NewLedgerRepo(rdb, db, bus)
	billing := repository.NewBillingRepo(db)
	sessions := repository.NewSessionRepo(rdb)

	// External providers
	pollCfg := jobpoll.Config{
		Interval:    cfg.JobPollInterval,
		MaxAttempts: uint64(cfg.JobPollMaxAttempts),
	}
	if pollCfg.Interval <= 0 {
		pollCfg.Interval = time.Second
	}
	text := openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	predictions := replicate.New(cfg.ReplicateToken, cfg.ReplicateBaseURL, pollCfg)
	images := replicate.NewImageService(predictions, replicate.DefaultVersions())

	// Business layer
	svc := service.NewMeter(ledger, billing, text, images)

	// Payments
	payments := payment.NewClient(cfg.StripeKey)
	webhook := payment.NewWebhookHandler(cfg.StripeWebhookSecret, svc)

	// Transports and workers
	auth := transportHTTP.NewAuth(sessions)
	handler := transportHTTP.NewHandler(svc, payments, auth, webhook)

	servers := []Server{
		transportHTTP.NewServer(cfg.ApiAddr(), handler),
		worker.NewUsageWorker(ledger, nc),
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
