package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/auth"
	"github.com/md-rashed-zaman/huddle/libs/config"
	"github.com/md-rashed-zaman/huddle/libs/db"
	"github.com/md-rashed-zaman/huddle/libs/grpcx"
	"github.com/md-rashed-zaman/huddle/libs/httpx"
	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	otelx "github.com/md-rashed-zaman/huddle/libs/otel"
	"github.com/md-rashed-zaman/huddle/libs/runtime"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/icsimport"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/invitations"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/meetings"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/people"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/reminders"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/slotcache"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/migrations"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health, outbox publisher and reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

// Largest accepted request body; calendar uploads are capped lower by their handler.
const maxRequestBody = 11 << 20

type slotCache interface {
	availability.Cache
	Ready(ctx context.Context) error
	Close() error
}

func newSlotCache(logger *slog.Logger) slotCache {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Warn("REDIS_ADDR not set; slot searches cached in process")
		return slotcache.NewMemory()
	}
	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		logger.Warn("invalid REDIS_DB; using 0", "err", err)
	}
	return slotcache.NewRedis(slotcache.RedisOptions{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
		Prefix:   config.String("REDIS_PREFIX", "huddle"),
	}, logger)
}

func serve(migrate bool) error {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
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
	if migrate {
		if err := db.Migrate(ctx, pool, migrations.Schema); err != nil {
			return err
		}
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		return err
	}
	verifier := auth.Verifier{Secret: jwtSecret}
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		verifier.JWKS = auth.NewJWKSClient(jwksURL, 5*time.Minute)
	}

	cacheTTL, err := config.Duration("SLOT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return err
	}
	reminderEvery, err := config.Duration("REMINDER_INTERVAL", time.Minute)
	if err != nil {
		return err
	}
	reminderLead, err := config.Duration("REMINDER_LEAD", 10*time.Minute)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("HTTP_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return err
	}
	outboxRetention, err := config.Duration("OUTBOX_RETENTION", 7*24*time.Hour)
	if err != nil {
		return err
	}
	brokers := config.String("KAFKA_BROKERS", "")

	store := storage.NewPGStore(pool)
	cache := newSlotCache(logger)
	defer func() { _ = cache.Close() }()

	outboxRepo := outbox.NewRepository()
	notifier := notify.NewOutbox(pool, outboxRepo)

	engine := availability.NewEngine(store, cache, logger, availability.Config{CacheTTL: cacheTTL})
	api := handlers.NewAPI(
		engine,
		meetings.NewService(store, notifier, logger, meetings.Config{
			ConferenceBaseURL: config.String("CONFERENCE_BASE_URL", meetings.DefaultConferenceBaseURL),
		}),
		invitations.NewService(store, notifier, logger),
		people.NewService(store),
		icsimport.NewService(store, logger),
		logger,
	)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		Retention: outboxRetention,
	})
	go publisher.Run(ctx)

	worker := reminders.NewWorker(store, notifier, logger, reminders.WorkerConfig{
		Interval: reminderEvery,
		Lead:     reminderLead,
	})
	go worker.Run(ctx)

	grpcSrv, health := grpcx.NewServer(service, logger)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: cache.Ready},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	api.Register(mux)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(requestTimeout),
		httpx.WithBodyLimit(maxRequestBody),
		httpx.WithBearerAuth(verifier),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	err = runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
	health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcSrv.GracefulStop()
	logger.Info("grpc server stopped")
	return err
}
