// Command apiserver runs the visibility analysis HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/aivis/internal/application/visibility"
	"github.com/turtacn/aivis/internal/config"
	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/domain/target"
	"github.com/turtacn/aivis/internal/infrastructure/database/memstore"
	"github.com/turtacn/aivis/internal/infrastructure/database/postgres"
	"github.com/turtacn/aivis/internal/infrastructure/database/redis"
	"github.com/turtacn/aivis/internal/infrastructure/fetch"
	"github.com/turtacn/aivis/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aivis/internal/infrastructure/netguard"
	"github.com/turtacn/aivis/internal/intelligence/llmgen"
	httpiface "github.com/turtacn/aivis/internal/interfaces/http"
	"github.com/turtacn/aivis/internal/interfaces/http/handlers"
	"github.com/turtacn/aivis/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (empty: environment only)")
	port := flag.Int("port", 0, "HTTP listen port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: logger: %v\n", err)
		os.Exit(1)
	}
	log = log.Named("apiserver")
	log.Info("starting",
		logging.String("version", version),
		logging.String("store", cfg.Store),
		logging.Int("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", logging.Err(err))
	}
	defer app.Close()

	router := httpiface.NewRouter(httpiface.RouterConfig{
		TargetHandler: handlers.NewTargetHandler(app.Service),
		HealthHandler: handlers.NewHealthHandler(version, app.Metrics, app.HealthCheckers...),
		Logger:        log,
		Metrics:       app.Metrics,
		Collector:     app.Collector,
		CORS:          corsConfig(),
		RateLimit:     app.RateLimiter,
		RateCfg:       app.RateCfg,
	})

	srv := httpiface.NewServer(httpiface.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("http server failed", logging.Err(err))
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		if err := srv.Stop(context.Background()); err != nil {
			log.Error("shutdown incomplete", logging.Err(err))
		}
	}

	log.Info("stopped")
}

// loadConfig reads the file when given one, otherwise falls back to
// AIVIS_* environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func corsConfig() *middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowedOrigins = []string{"*"}
	return &c
}

// application holds everything built from config, with teardown order
// captured in Close.
type application struct {
	Service        *visibility.Service
	Metrics        *prometheus.AppMetrics
	Collector      prometheus.MetricsCollector
	RateLimiter    *middleware.RateLimiter
	RateCfg        middleware.RateLimitConfig
	HealthCheckers []handlers.HealthChecker

	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApplication(ctx context.Context, cfg *config.Config, log logging.Logger) (*application, error) {
	app := &application{}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return nil, err
		}
		app.Collector = collector
		app.Metrics = prometheus.NewAppMetrics(collector)
	}

	guard := netguard.New(log)

	var (
		cache *redis.Cache
		locks visibility.LockFactory
	)
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.HealthCheckers = append(app.HealthCheckers, redisHealthChecker{client})

		cache = redis.NewCache(client, log)
		locks = lockFactoryAdapter{redis.NewLockFactory(client, log)}
	}

	var fetchOpts []fetch.Option
	if cache != nil {
		fetchOpts = append(fetchOpts, fetch.WithCache(cache, cfg.Fetcher.CacheTTL))
	}
	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.Fetcher.Timeout,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		MaxRedirects: cfg.Fetcher.MaxRedirects,
		UserAgent:    cfg.Fetcher.UserAgent,
		CacheTTL:     cfg.Fetcher.CacheTTL,
	}, guard, log, fetchOpts...)

	repo, err := buildRepository(ctx, cfg, log, app)
	if err != nil {
		return nil, err
	}

	keywords, prompts, sampler, err := buildGenerators(cfg, log)
	if err != nil {
		return nil, err
	}
	runner := sampling.NewRunner(sampler, cfg.Analysis.Workers, log)

	var publisher visibility.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.ProducerRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		}, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = producer.Close() })
		publisher = producer
	}

	svc, err := visibility.NewService(visibility.Deps{
		Repo:          repo,
		Guard:         guard,
		Fetcher:       fetcher,
		Keywords:      keywords,
		Prompts:       prompts,
		Runner:        runner,
		Locks:         locks,
		Publisher:     publisher,
		Metrics:       app.Metrics,
		Log:           log,
		TrialsPerPair: cfg.Analysis.TrialsPerPair,
	})
	if err != nil {
		return nil, err
	}
	app.Service = svc

	app.RateCfg = middleware.DefaultRateLimitConfig()
	app.RateCfg.RequestsPerSecond = cfg.Server.RateLimitRPS
	app.RateCfg.BurstSize = cfg.Server.RateLimitBurst
	app.RateLimiter = middleware.NewRateLimiter(app.RateCfg)
	app.closers = append(app.closers, func() { app.RateLimiter.Close() })

	return app, nil
}

// buildRepository selects the target store per cfg.Store, running
// migrations first when postgres is asked to auto-migrate.
func buildRepository(ctx context.Context, cfg *config.Config, log logging.Logger, app *application) (target.Repository, error) {
	if cfg.Store != config.StorePostgres {
		return memstore.NewTargetStore(), nil
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.DSN()); err != nil {
			return nil, err
		}
	}
	conn, err := postgres.Connect(ctx, postgres.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, conn.Close)
	app.HealthCheckers = append(app.HealthCheckers, postgresHealthChecker{conn})

	return postgres.NewTargetRepository(conn, log), nil
}

// buildGenerators returns the keyword generator, prompt builder, and trial
// sampler for the configured backend. The openai backend keeps the
// heuristic implementations as fallbacks so a model outage degrades
// rather than fails.
func buildGenerators(cfg *config.Config, log logging.Logger) (keyword.Generator, prompt.Builder, sampling.Sampler, error) {
	heuristicGen := keyword.NewHeuristicGenerator(log)
	templateBuilder := prompt.NewTemplateBuilder(log)
	deterministic := sampling.NewDeterministicSampler(cfg.Analysis.OccurrenceThreshold)

	if cfg.Generator.Backend != config.GeneratorOpenAI {
		return heuristicGen, templateBuilder, deterministic, nil
	}

	client, err := llmgen.NewClient(llmgen.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		Timeout:     cfg.Generator.Timeout,
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return llmgen.NewGenerator(client, heuristicGen, log),
		llmgen.NewBuilder(client, templateBuilder, log),
		llmgen.NewSampler(client, deterministic, log),
		nil
}
