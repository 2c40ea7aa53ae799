package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rently/internal/config"
	"rently/internal/handlers"
	"rently/internal/logger"
	"rently/internal/metrics"
	"rently/internal/middleware"
	"rently/internal/repositories"
	"rently/internal/services"
	"rently/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, flush := logger.New(logger.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.File != "",
			Filename:   cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		},
	})
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// --- Backends ---
	store, err := openStore(ctx, cfg.Store, zl)
	if err != nil {
		zl.Fatal("failed to open document store", zap.Error(err))
	}
	defer store.Close()

	idp, err := openIdentity(cfg.Identity, cfg.Store.LogLevel, zl)
	if err != nil {
		zl.Fatal("failed to open identity provider", zap.Error(err))
	}

	blobs, err := openBlob(ctx, cfg.Blob)
	if err != nil {
		zl.Fatal("failed to open blob store", zap.Error(err))
	}

	sessions, closeSessions, err := openSessions(ctx, cfg.Session)
	if err != nil {
		zl.Fatal("failed to open session store", zap.Error(err))
	}
	defer closeSessions()

	// --- RabbitMQ ---
	var pub services.EventPublisher
	if cfg.RabbitMQ.Enabled {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, zl)
		if err != nil {
			zl.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		pub = mqClient

		if err := mqClient.Consume(logEvent(zl)); err != nil {
			zl.Error("failed to start RabbitMQ consumer", zap.Error(err))
		}
	} else {
		zl.Info("rabbitmq disabled, events are dropped")
	}
	events := services.NewEmitter(pub, cfg.RabbitMQ.Exchange, zl)

	// --- Repositories and services ---
	users := repositories.NewDocUserRepository(store, m, zl, repositories.UserRepoOptions{
		Concurrency:   cfg.Fanout.Concurrency,
		RetryInterval: cfg.Subscription.RetryInterval,
	})
	listings := repositories.NewDocListingRepository(store, m, zl)

	deps := appDeps{
		log:      zl,
		registry: reg,
		users:    users,
		accounts: services.NewAccountService(idp, users, sessions, events, zl, cfg.JWT.Secret, cfg.JWT.TTL),
		listings: services.NewListingService(listings, blobs, events, m, zl, cfg.Fanout.Concurrency),
		follows:  services.NewFollowService(users, events, zl),
		search:   services.NewSearchService(listings, users, zl),
	}
	app := newApp(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feedSearchUsers(gctx, users, deps.search, zl) })
	g.Go(func() error { return refreshSearchListings(gctx, deps.search, cfg.Search.RefreshInterval) })
	g.Go(func() error {
		zl.Info("server starting", zap.String("addr", cfg.App.Port), zap.String("env", cfg.App.Env))
		return app.Listen(cfg.App.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("server stopped with error", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
}

type appDeps struct {
	log      *zap.Logger
	registry *prometheus.Registry
	users    repositories.UserRepository
	accounts *services.AccountService
	listings *services.ListingService
	follows  *services.FollowService
	search   *services.SearchService
}

// newApp builds the Fiber app with every route mounted.
func newApp(d appDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             32 << 20,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.Metrics(d.registry))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	apiV1 := app.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(d.accounts, d.log)
	authHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(d.accounts, d.log))
	authHandler.RegisterProtectedRoutes(protected)
	handlers.NewUserHandler(d.users, d.accounts, d.follows, d.log).RegisterRoutes(protected)
	handlers.NewListingHandler(d.listings, d.log).RegisterRoutes(protected)
	handlers.NewSearchHandler(d.search, d.log).RegisterRoutes(protected)

	return app
}

// feedSearchUsers keeps the search user snapshot in step with the live
// user feed.
func feedSearchUsers(ctx context.Context, users repositories.UserRepository, search *services.SearchService, log *zap.Logger) error {
	feed, err := users.SubscribeAll(ctx)
	if err != nil {
		log.Error("search will not see live users", zap.Error(err))
		return nil
	}
	defer feed.Close()
	for list := range feed.Updates() {
		search.ReplaceUsers(list)
	}
	return nil
}

func refreshSearchListings(ctx context.Context, search *services.SearchService, every time.Duration) error {
	_ = search.RefreshListings(ctx)
	if every <= 0 {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = search.RefreshListings(ctx)
		}
	}
}

// logEvent is the consumer for the event queue.
func logEvent(log *zap.Logger) func(msg amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		log.Info("event received",
			zap.String("routing_key", msg.RoutingKey),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.ByteString("body", msg.Body))
		return nil
	}
}
