package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"afripay/internal/config"
	"afripay/internal/core/reconcile"
	"afripay/internal/email"
	"afripay/internal/fee"
	httpx "afripay/internal/http"
	"afripay/internal/http/handlers"
	middlewarex "afripay/internal/http/middleware"
	"afripay/internal/services/data"
	"afripay/internal/services/event"
	"afripay/internal/services/invoice"
	"afripay/internal/services/payment"
	"afripay/internal/solanapay"
	"afripay/internal/store/postgres"
	redisstore "afripay/internal/store/redis"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB
	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	store := postgres.NewStore(pool)

	chain, err := solanapay.New(cfg.Solana)
	if err != nil {
		log.Fatal().Err(err).Msg("solana client")
	}

	mailer := email.New(cfg.Email, store.EmailLogs)
	if !mailer.Enabled() {
		log.Warn().Msg("RESEND_API_KEY not set; customer emails are disabled")
	}

	opts, err := payment.OptionsFromConfig(cfg.Fee)
	if err != nil {
		log.Fatal().Err(err).Msg("AFRIPAY_PLATFORM_WALLET")
	}
	calc := fee.NewCalculator(cfg.Fee.Rate, cfg.Fee.FixedFeeUSD, cfg.Fee.SOLPriceUSD)

	paymentSvc := payment.NewService(store.PaymentRequests, store.Transactions, store.UnitOfWork, chain, calc, mailer, opts)
	invoiceSvc := invoice.NewService(store.Invoices, store.UnitOfWork, paymentSvc, mailer)
	dataSvc := data.NewService(store.PaymentRequests, store.Transactions, store.Events, store.Metrics)

	health := &handlers.Health{
		DB:      store.Ping,
		Chain:   chain,
		Env:     cfg.Server.Env,
		Network: cfg.Solana.Network,
		Started: time.Now(),
	}

	var workers sync.WaitGroup
	var limiter middlewarex.Limiter
	if cfg.Sec.RateLimit > 0 {
		limiter = middlewarex.NewMemoryLimiter(cfg.Sec.RateLimit, cfg.Sec.RateLimitWindow)
	}

	if cfg.Redis.Addr != "" {
		rdb := redisstore.NewClient(cfg.Redis)
		defer rdb.Close()
		health.Redis = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
		if cfg.Sec.RateLimit > 0 {
			limiter = redisstore.NewLimiter(rdb, cfg.Sec.RateLimit, cfg.Sec.RateLimitWindow)
		}

		// Publish lifecycle events for live dashboards
		outbox := event.NewWorker(store.Events, event.NewProcessor(store.Events, redisstore.NewPublisher(rdb)), 0, 0)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outbox.Run(ctx)
		}()
	}

	if cfg.Worker.Enabled {
		worker := reconcile.NewWorker(paymentSvc, cfg.Worker.PollEvery, cfg.Worker.BatchSize)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(ctx)
		}()
	}

	// Router
	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:   cfg,
		Payments: paymentSvc,
		Invoices: invoiceSvc,
		Data:     dataSvc,
		Health:   health,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().
			Str("network", cfg.Solana.Network).
			Str("env", cfg.Server.Env).
			Msgf("AfriPay API listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	workers.Wait()
	// let queued emails go out
	paymentSvc.Wait()
	invoiceSvc.Wait()
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Cfg) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
