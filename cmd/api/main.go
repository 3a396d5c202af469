package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/diogomassis/payfriend/cmd/handlers"
	"github.com/diogomassis/payfriend/internal/env"
	"github.com/diogomassis/payfriend/internal/logging"
	"github.com/diogomassis/payfriend/internal/services/cache"
	"github.com/diogomassis/payfriend/internal/services/expirer"
	"github.com/diogomassis/payfriend/internal/services/health"
	"github.com/diogomassis/payfriend/internal/services/onetouch"
	"github.com/diogomassis/payfriend/internal/services/worker"
)

// approvals stay readable for a day after their deadline
const approvalRetention = 24 * time.Hour

func main() {
	env.Load()

	level := zerolog.InfoLevel
	if env.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	ctx, _ := logging.SetupLogger(context.Background(), env.Env.Environment, level)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := cache.NewPayfriendRedisClient(env.Env.RedisAddr)
	if err := redisClient.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("[api] Redis is unreachable")
	}
	defer redisClient.Close()

	clock := clockwork.NewRealClock()
	store := cache.NewApprovalStore(redisClient.Client(), approvalRetention)
	queue := cache.NewNotificationQueue(redisClient.Client(), env.Env.InstanceName+":notifications")
	ledger := cache.NewPaymentLedger(redisClient.Client(), logging.Component(ctx, "ledger"))
	manager := onetouch.NewManager(store, queue, ledger, clock, onetouch.Config{
		TTL:              env.Env.ApprovalTTL,
		SmsAttemptsLimit: env.Env.SmsAttemptsLimit,
	}, *zerolog.Ctx(ctx))

	notifier, err := worker.NewNotificationWorkerBuilder().
		WithNumWorkers(env.Env.NotifyWorkers).
		WithQueue(queue).
		WithNotifier(worker.NewLogNotifier(*zerolog.Ctx(ctx))).
		WithLogger(*zerolog.Ctx(ctx)).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("[api] Failed to build notification workers")
	}
	notifier.Start()
	defer notifier.Stop()

	sweeper := expirer.NewPayfriendExpirer(store, manager, clock, env.Env.ExpirerInterval, *zerolog.Ctx(ctx))
	sweeper.Start()
	defer sweeper.Stop()

	monitor := health.NewMonitor(clock, 5*time.Second, *zerolog.Ctx(ctx), map[string]health.Pinger{"redis": redisClient})
	monitor.Start()
	defer monitor.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "payfriend-" + env.Env.InstanceName,
		DisableStartupMessage: env.IsProduction(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	handlers.New(manager, ledger, *zerolog.Ctx(ctx)).WithHealth(monitor).Register(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		<-ctx.Done()
		log.Info().Msg("[api] Shutting down HTTP server...")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("[api] HTTP server shutdown failed")
		}
	}()

	log.Info().Str("port", env.Env.BackendPort).Msg("[api] Listening")
	if err := app.Listen(":" + env.Env.BackendPort); err != nil {
		log.Error().Err(err).Msg("[api] HTTP server stopped")
	}
}
