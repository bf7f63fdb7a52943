package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-stock/internal/cart"
	"github.com/ariefcatur/go-commerce-stock/internal/checkout"
	"github.com/ariefcatur/go-commerce-stock/internal/config"
	"github.com/ariefcatur/go-commerce-stock/internal/httpx"
	kafkax "github.com/ariefcatur/go-commerce-stock/internal/kafka"
	"github.com/ariefcatur/go-commerce-stock/internal/notify"
	"github.com/ariefcatur/go-commerce-stock/internal/payment"
	"github.com/ariefcatur/go-commerce-stock/internal/postgres"
	"github.com/ariefcatur/go-commerce-stock/internal/redisx"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
	"github.com/ariefcatur/go-commerce-stock/internal/shipping"
	"github.com/ariefcatur/go-commerce-stock/internal/stock"
	"github.com/ariefcatur/go-commerce-stock/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	tp, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// DB
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for order-paid notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderPaid, 1024, log)
	prod.Start(ctx)

	// Components
	ledger := stock.NewLedger(store)
	resv := reservation.NewManager(store)
	est := shipping.DefaultEstimator()
	orch := &checkout.Orchestrator{
		Store:        store,
		Reservations: resv,
		Estimator:    est,
		Gateway:      payment.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayKey),
		HoldTTL:      cfg.HoldTTL,
	}
	rec := &payment.Reconciler{
		Store:        store,
		Ledger:       ledger,
		Reservations: resv,
		Redis:        rdb,
		Notifier:     &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName},
		Log:          log,
	}

	h := &httpx.Handler{
		Store:        store,
		Carts:        cart.NewService(store, est),
		Checkout:     orch,
		Reconciler:   rec,
		Ledger:       ledger,
		Reservations: resv,
		Redis:        rdb,
		Log:          log,
	}
	router := httpx.NewRouter(log)
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush inbox & close writer
	cancel()
	prod.WaitClosed()
}
