package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/accounts"
	"github.com/bizconnect/marketplace/internal/config"
	kafkax "github.com/bizconnect/marketplace/internal/kafka"
	"github.com/bizconnect/marketplace/internal/logging"
	"github.com/bizconnect/marketplace/internal/mailer"
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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	service := cfg.ServiceName + "-notifier"
	handler := &notify.Consumer{
		Hook: &notify.Dispatcher{
			Notices: &notify.Inbox{Repo: notify.Store{DB: db}, RDB: rdb, Log: logger.Named("notify")},
			Users:   accounts.Directory{DB: db},
			Mail:    newMailer(cfg, logger),
			Log:     logger.Named("dispatcher"),
		},
		Dedup: redisx.Dedup{RDB: rdb, Service: service},
		Log:   logger.Named("consumer"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderEvents, cfg.NotifierWorkers, logger.Named("kafka"))
	logger.Infow("notifier consumer started", "group", cfg.NotifierGroup, "topic", orders.TopicOrderEvents, "workers", cfg.NotifierWorkers)
	if err := cons.Start(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("consumer exit", "error", err)
	}
	logger.Info("notifier stopped")
}

func newMailer(cfg config.Config, logger *zap.SugaredLogger) mailer.Mailer {
	if !cfg.SMTP.Enabled() {
		return mailer.Noop{Log: logger.Named("mailer")}
	}
	return mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From, cfg.SiteURL, logger.Named("mailer"))
}
