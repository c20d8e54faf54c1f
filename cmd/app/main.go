package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TemirB/coursemarket/internal/application/enrollment"
	"github.com/TemirB/coursemarket/internal/application/handler"
	"github.com/TemirB/coursemarket/internal/application/order"
	"github.com/TemirB/coursemarket/internal/cache"
	"github.com/TemirB/coursemarket/internal/cacheaside"
	"github.com/TemirB/coursemarket/internal/config"
	"github.com/TemirB/coursemarket/internal/database"
	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/httpapi"
	"github.com/TemirB/coursemarket/internal/kafka"
	"github.com/TemirB/coursemarket/internal/natsbus"
	"github.com/TemirB/coursemarket/internal/observability"
	"github.com/TemirB/coursemarket/internal/outbox"
	"github.com/TemirB/coursemarket/internal/pkg/breaker"
)

type busPublisher interface {
	order.Publisher
	outbox.RawPublisher
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogDev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("application stopped with error", zap.Error(err))
	}
	logger.Info("application stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics := observability.NewInmem(500)

	pool, err := database.Connect(ctx, cfg.DSN(), logger.Named("pgx"))
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	store, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	courses := cacheaside.New[domain.Course](
		database.NewCourseStore(pool, logger), store, cacheaside.CourseKeys, logger.Named("courses"), metrics,
	)
	students := cacheaside.New[domain.Student](
		database.NewStudentStore(pool, logger), store, cacheaside.StudentKeys, logger.Named("students"), metrics,
	)

	var orderOpts []database.OrderOption
	if cfg.Outbox.Enabled {
		orderOpts = append(orderOpts, database.WithOutbox())
	}
	orderStore := database.NewOrderStore(pool, logger, orderOpts...)
	enrollments := enrollment.NewService(database.NewEnrollmentStore(pool, logger), metrics, logger.Named("enrollments"))

	bus, subscribe, closeBus, err := newBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	var publisher order.Publisher = bus
	if cfg.Outbox.Enabled {
		publisher = outbox.NewDeferred(logger.Named("outbox"))
	}
	orders := order.NewService(students, orderStore, publisher, metrics, logger.Named("orders"))

	g, gctx := errgroup.WithContext(ctx)

	h := handler.NewHandler(enrollments, breaker.New(cfg.Breaker), metrics, cfg.Retry, logger.Named("handler"))
	if err := subscribe(gctx, g, h); err != nil {
		return err
	}

	if cfg.Outbox.Enabled {
		relay := outbox.NewRelay(database.NewOutboxStore(pool), bus, cfg.Outbox.Interval, cfg.Outbox.Batch, logger.Named("outbox"))
		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
	}

	server := httpapi.New(httpapi.Services{
		Courses:     courses,
		Students:    students,
		Enrollments: enrollments,
		Orders:      orders,
		Stats:       metrics,
	}, logger.Named("http"), metrics, httpapi.WithOrderLimit(cfg.OrdersRPS, cfg.OrdersBurst))

	g.Go(func() error {
		err := server.ListenAndServe(gctx, cfg.HTTPAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newCache(ctx context.Context, cfg config.Config) (cacheaside.Cache, func(), error) {
	if cfg.CacheDriver == config.CacheLRU {
		c, err := cache.NewLRU(cfg.CacheCap)
		return c, func() {}, err
	}
	c, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

type subscribeFunc func(ctx context.Context, g *errgroup.Group, h *handler.Handler) error

// newBus returns the OrderPlaced publisher for the configured driver and a
// function that starts the enrollment subscriber on the same bus.
func newBus(ctx context.Context, cfg config.Config, logger *zap.Logger) (busPublisher, subscribeFunc, func(), error) {
	if cfg.BusDriver == config.BusNATS {
		nc, err := natsbus.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		subscribe := func(ctx context.Context, _ *errgroup.Group, h *handler.Handler) error {
			_, err := natsbus.Subscribe(ctx, nc, cfg.NATS.Subject, cfg.Kafka.Group, h, logger.Named("nats"))
			return err
		}
		return natsbus.NewPublisher(nc, cfg.NATS.Subject, logger.Named("nats")), subscribe, func() { _ = nc.Drain() }, nil
	}

	if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, 1, logger); err != nil {
		return nil, nil, nil, err
	}
	pub := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger.Named("kafka"))
	reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group)

	subscribe := func(ctx context.Context, g *errgroup.Group, h *handler.Handler) error {
		consumer := kafka.NewConsumer(h, reader, cfg.Kafka.Workers, logger.Named("consumer"))
		g.Go(func() error {
			consumer.Start(ctx)
			return nil
		})
		return nil
	}
	closeBus := func() {
		if err := reader.Close(); err != nil {
			logger.Warn("kafka reader close", zap.Error(err))
		}
		if err := pub.Close(); err != nil {
			logger.Warn("kafka writer close", zap.Error(err))
		}
	}
	return pub, subscribe, closeBus, nil
}
