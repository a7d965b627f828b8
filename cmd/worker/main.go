package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/common/otel"
	"minicrm.app/pipeline/core/config"
	"minicrm.app/pipeline/core/db"
	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
	"minicrm.app/pipeline/internal/vendor"
	"minicrm.app/pipeline/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg, config.ServiceTypeWorker)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	// Different node ID than the API server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	groups := make([]queue.GroupSpec, 0, 4)
	for _, s := range cfg.Streams.All() {
		groups = append(groups, queue.GroupSpec{Stream: s.Stream, Group: s.Group})
	}
	if err := queue.EnsureGroups(ctx, redisClient, groups, 30*time.Second); err != nil {
		slog.ErrorContext(ctx, "failed to create consumer groups", "error", err)
		os.Exit(1)
	}

	base := cfg.Redis.ConsumerName
	if base == "" {
		base = "worker-" + uuid.NewString()[:8]
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b := &builder{
		client: redisClient,
		cfg:    cfg,
		base:   base,
		opts:   []worker.Option{worker.WithMetrics(worker.NewMetrics(reg))},
	}

	stores := store.NewStores(database.Queries())
	txRunner := &workerTxRunnerAdapter{db: database}
	producer := queue.NewRedisProducer(redisClient, cfg.Redis.MaxLen)

	simulated, err := vendor.NewSimulated(vendor.SimulatedConfig{
		SuccessRate: cfg.Delivery.SuccessRate,
		Latency:     cfg.Delivery.Latency,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create vendor", "error", err)
		os.Exit(1)
	}

	var notifier vendor.Notifier
	switch cfg.Delivery.NotifyMode {
	case "http":
		notifier = vendor.NewHTTPNotifier(&http.Client{Timeout: 10 * time.Second}, cfg.Delivery.ReceiptURL)
	default:
		notifier = vendor.NewStreamNotifier(producer, cfg.Streams.LogUpdate.Stream)
	}

	sup := worker.NewSupervisor()

	customers := addWorkers[codec.CustomerRecord](sup, b, "customer", cfg.Streams.Customer,
		cfg.Workers.CustomerConcurrency, worker.NewCustomerIngestor(stores.Customers()))
	b.addReclaimer(sup, "customer", cfg.Streams.Customer, customers)

	orders := addWorkers[codec.OrderRecord](sup, b, "order", cfg.Streams.Order,
		cfg.Workers.OrderConcurrency, worker.NewOrderIngestor(stores.Customers(), txRunner))
	b.addReclaimer(sup, "order", cfg.Streams.Order, orders)

	deliveries := addWorkers[codec.DeliveryRequest](sup, b, "delivery", cfg.Streams.Delivery,
		cfg.Workers.DeliveryConcurrency, worker.NewDeliverySimulator(simulated, notifier))
	b.addReclaimer(sup, "delivery", cfg.Streams.Delivery, deliveries)

	var logs worker.BatchProcessor
	for i := range max(cfg.Workers.LogConcurrency, 1) {
		name := fmt.Sprintf("%s-log-%d", base, i)
		agg := worker.NewLogAggregator(b.consumer(cfg.Streams.LogUpdate, name), txRunner,
			b.loopConfig("log", cfg.Streams.LogUpdate, name),
			worker.AggregatorConfig{
				MaxBatchSize: cfg.Aggregator.MaxBatchSize,
				MaxWait:      cfg.Aggregator.MaxWait,
				FlushTimeout: cfg.ShutdownTimeout / 2,
			}, b.opts...)
		sup.Add(name, agg)
		if logs == nil {
			logs = agg
		}
	}
	b.addReclaimer(sup, "log", cfg.Streams.LogUpdate, logs)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.InfoContext(ctx, "metrics server starting", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "metrics server error", "error", err)
			}
		}()
	}

	slog.InfoContext(ctx, "pipeline worker starting",
		"env", cfg.Env,
		"consumer_base", base,
		"loops", sup.Len(),
		"notify_mode", cfg.Delivery.NotifyMode)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- sup.Run(runCtx)
	}()

	<-runCtx.Done()
	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	// In-flight batches finish and the aggregators flush before Run returns.
	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded, unacknowledged items will be redelivered")
	case err := <-done:
		if err != nil {
			slog.ErrorContext(ctx, "supervisor error during shutdown", "error", err)
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "metrics server shutdown error", "error", err)
		}
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

// builder wires consumers and loops that share the process-wide settings.
type builder struct {
	client *redis.Client
	cfg    config.Config
	base   string
	opts   []worker.Option
}

func (b *builder) consumer(sc config.StreamConfig, name string) *queue.RedisConsumer {
	return queue.NewRedisConsumer(b.client, queue.ConsumerConfig{
		Stream:    sc.Stream,
		Group:     sc.Group,
		Consumer:  name,
		DLQStream: sc.DLQStream,
		BatchSize: b.cfg.Workers.BatchSize,
		Block:     b.cfg.Workers.Block,
	})
}

func (b *builder) loopConfig(label string, sc config.StreamConfig, name string) worker.Config {
	return worker.Config{
		Name:           label,
		Stream:         sc.Stream,
		Group:          sc.Group,
		Consumer:       name,
		BatchSize:      b.cfg.Workers.BatchSize,
		Block:          b.cfg.Workers.Block,
		BackoffInitial: b.cfg.Workers.BackoffInitial,
		BackoffMax:     b.cfg.Workers.BackoffMax,
	}
}

func (b *builder) addReclaimer(sup *worker.Supervisor, label string, sc config.StreamConfig, processor worker.BatchProcessor) {
	name := fmt.Sprintf("%s-%s-reclaimer", b.base, label)
	sup.Add(name, worker.NewReclaimer(b.consumer(sc, name), processor, worker.ReclaimerConfig{
		Stream:        sc.Stream,
		Group:         sc.Group,
		Consumer:      name,
		MinIdle:       b.cfg.Reclaimer.MinIdle,
		Interval:      b.cfg.Reclaimer.Interval,
		BatchSize:     b.cfg.Reclaimer.BatchSize,
		MaxDeliveries: b.cfg.Reclaimer.MaxDeliveries,
	}, b.opts...))
}

// addWorkers starts n loops for one stream, each with its own consumer, and
// returns the first as the stream's batch processor for reclaimed items.
func addWorkers[T any](sup *worker.Supervisor, b *builder, label string, sc config.StreamConfig, n int, handler worker.Handler[T]) worker.BatchProcessor {
	var first worker.BatchProcessor
	for i := range max(n, 1) {
		name := fmt.Sprintf("%s-%s-%d", b.base, label, i)
		w := worker.New[T](b.consumer(sc, name), handler, b.loopConfig(label, sc, name), b.opts...)
		sup.Add(name, w)
		if first == nil {
			first = w
		}
	}
	return first
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(store.NewStores(q))
	})
}

const banner = `
 __  __ ___ _  _ ___ ___ ___ __  __   __      _____  ___ _  _____ ___
|  \/  |_ _| \| |_ _/ __| _ \  \/  |  \ \    / / _ \| _ \ |/ / __| _ \
| |\/| || || .' || | (__|   / |\/| |   \ \/\/ / (_) |   / ' <| _||   /
|_|  |_|___|_|\_|___\___|_|_\_|  |_|    \_/\_/ \___/|_|_\_|\_\___|_|_\
`
