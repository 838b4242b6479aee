package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/huddle/libs/config"
	"github.com/md-rashed-zaman/huddle/libs/db"
	"github.com/md-rashed-zaman/huddle/libs/grpcx"
	"github.com/md-rashed-zaman/huddle/libs/httpx"
	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	otelx "github.com/md-rashed-zaman/huddle/libs/otel"
	"github.com/md-rashed-zaman/huddle/libs/runtime"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/delivery"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/notice"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()
	if err := config.Load(os.Getenv("CONFIG_FILE")); err != nil {
		panic(err)
	}
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()
	if config.Bool("DB_AUTO_MIGRATE", false) {
		if err := db.Migrate(ctx, pool, migrations.Schema); err != nil {
			return err
		}
	}

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@huddle.local"),
	)
	deliverer := delivery.NewDeliverer(sender, storage.NewRepository(pool), logger,
		config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	brokers := config.String("KAFKA_BROKERS", "")
	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", notice.EventType),
	}, deliverer.Handle)
	go eventConsumer.Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if addr := config.String("SCHEDULING_GRPC_ADDR", ""); addr != "" {
		checks = append(checks, runtime.ReadyCheck{
			Name:  "scheduling",
			Check: grpcx.HealthReadyCheck(addr, config.String("SCHEDULING_SERVICE_NAME", "scheduling-service")),
		})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}
