package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizconnect/marketplace/internal/accounts"
	"github.com/bizconnect/marketplace/internal/catalog"
	"github.com/bizconnect/marketplace/internal/checkout"
	"github.com/bizconnect/marketplace/internal/config"
	"github.com/bizconnect/marketplace/internal/httpx"
	kafkax "github.com/bizconnect/marketplace/internal/kafka"
	"github.com/bizconnect/marketplace/internal/logging"
	"github.com/bizconnect/marketplace/internal/mailer"
	"github.com/bizconnect/marketplace/internal/media"
	"github.com/bizconnect/marketplace/internal/notify"
	"github.com/bizconnect/marketplace/internal/orders"
	"github.com/bizconnect/marketplace/internal/postgres"
	"github.com/bizconnect/marketplace/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalw("db connect", "error", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatalw("db migrate", "error", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	disk := media.Disk{Root: cfg.MediaDir}
	svc := &orders.Service{
		Store:   orders.NewRepo(db),
		Proofs:  disk,
		Log:     logger.Named("orders"),
		SiteURL: cfg.SiteURL,
	}
	if cfg.Stripe.SecretKey != "" {
		svc.Checkout = checkout.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.Currency, logger.Named("stripe"))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, hosted checkout disabled")
	}

	inbox := &notify.Inbox{Repo: notify.Store{DB: db}, RDB: rdb, Log: logger.Named("notify")}
	cache := &redisx.StatusCache{RDB: rdb, Loader: svc, Log: logger.Named("status-cache")}
	svc.AddHook("status-cache", cache)

	var prod *kafkax.Producer
	if cfg.NotifyInline {
		svc.AddHook("notify", &notify.Dispatcher{
			Notices: inbox,
			Users:   accounts.Directory{DB: db},
			Mail:    newMailer(cfg, logger),
			Log:     logger.Named("dispatcher"),
		})
	} else {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger.Named("producer"))
		// runs until Close so in-flight requests can still publish during shutdown
		prod.Start(context.Background())
		svc.AddHook("kafka", orders.EventPublisher{Pub: prod, Producer: cfg.ServiceName})
	}

	api := httpx.NewAPI(httpx.Deps{
		Orders:  svc,
		Catalog: catalog.NewService(catalog.Repo{DB: db}),
		Inbox:   inbox,
		Status:  cache,
		Idem:    redisx.Idempotency{RDB: rdb},
		Proofs:  disk,
		Tokens:  accounts.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Log:     logger.Named("http"),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("HTTP listening", "addr", cfg.HTTPAddr, "notify_inline", cfg.NotifyInline)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logger.Errorw("server exited", "error", err)
	}

	if prod != nil {
		prod.Close()      // flush the inbox and close the writer
		prod.WaitClosed() // drain
	}
}

func newMailer(cfg config.Config, logger *zap.SugaredLogger) mailer.Mailer {
	if !cfg.SMTP.Enabled() {
		return mailer.Noop{Log: logger.Named("mailer")}
	}
	return mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From, cfg.SiteURL, logger.Named("mailer"))
}
