// Command worker consumes queued analysis requests from Kafka, runs the
// visibility pipeline for each target, and publishes the completed scores.
package main

import (
	"context"
	"encoding/json"
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
	"github.com/turtacn/aivis/internal/infrastructure/fetch"
	"github.com/turtacn/aivis/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aivis/internal/infrastructure/netguard"
	"github.com/turtacn/aivis/internal/intelligence/llmgen"
	httpiface "github.com/turtacn/aivis/internal/interfaces/http"
	"github.com/turtacn/aivis/internal/interfaces/http/handlers"
	"github.com/turtacn/aivis/pkg/errors"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (empty: environment only)")
	probePort := flag.Int("probe-port", 8081, "port for health probes and metrics")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "worker: kafka is disabled in configuration; nothing to consume")
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: logger: %v\n", err)
		os.Exit(1)
	}
	log = log.Named("worker")
	log.Info("starting",
		logging.String("version", version),
		logging.String("store", cfg.Store),
		logging.String("topic", kafka.TopicAnalysisRequested),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *probePort); err != nil {
		log.Fatal("worker failed", logging.Err(err))
	}
	log.Info("stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger, probePort int) error {
	var (
		collector prometheus.MetricsCollector
		metrics   *prometheus.AppMetrics
	)
	if cfg.Metrics.Enabled {
		var err error
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            "worker",
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return err
		}
		metrics = prometheus.NewAppMetrics(collector)
	}

	repo, checkers, cleanup, err := buildRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.ProducerRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	}, log)
	if err != nil {
		return err
	}
	defer producer.Close()

	svc, err := buildService(cfg, log, repo, producer, metrics)
	if err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topic:           kafka.TopicAnalysisRequested,
		StartOffset:     cfg.Kafka.AutoOffsetReset,
		RetryBackoff:    cfg.Kafka.RetryBackoff,
		DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
	}, analysisHandler(svc, log), producer, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	// Probe endpoint for liveness and metrics scrapes; no target routes.
	probe := httpiface.NewServer(httpiface.ServerConfig{
		Port:            probePort,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpiface.NewRouter(httpiface.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, metrics, checkers...),
		Logger:        log,
		Collector:     collector,
	}), log)
	go func() {
		if err := probe.Start(); err != nil {
			log.Error("probe server failed", logging.Err(err))
		}
	}()
	defer func() { _ = probe.Stop(context.Background()) }()

	log.Info("consuming", logging.String("group", cfg.Kafka.GroupID))
	return consumer.Run(ctx)
}

// analysisHandler decodes one analysis request and runs the pipeline.
// Decode failures are permanent; the consumer dead-letters them after its
// retry budget.
func analysisHandler(svc *visibility.Service, log logging.Logger) kafka.Handler {
	log = log.Named("handler")
	return func(ctx context.Context, envelope *kafka.EventEnvelope) error {
		var payload kafka.AnalysisRequestedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "decode analysis request")
		}
		if payload.TargetID == "" {
			return errors.Validation("analysis request missing target_id")
		}

		var opts []visibility.AnalyzeOption
		if payload.TrialsPerPair > 0 {
			opts = append(opts, visibility.WithTrialsPerPair(payload.TrialsPerPair))
		}
		score, err := svc.Analyze(ctx, payload.TargetID, opts...)
		if err != nil {
			log.Error("analysis failed",
				logging.String("target_id", payload.TargetID),
				logging.Err(err))
			return err
		}
		log.Info("analysis done",
			logging.String("target_id", payload.TargetID),
			logging.Float64("score", score.VisibilityScore))
		return nil
	}
}

func buildRepository(ctx context.Context, cfg *config.Config, log logging.Logger) (target.Repository, []handlers.HealthChecker, func(), error) {
	if cfg.Store != config.StorePostgres {
		// A memory store is only useful for local smoke tests: the worker
		// cannot see targets created by a separate API process.
		log.Warn("using in-memory store; targets queued by other processes will not resolve")
		return memstore.NewTargetStore(), nil, func() {}, nil
	}

	conn, err := postgres.Connect(ctx, postgres.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	checkers := []handlers.HealthChecker{pgHealthChecker{conn}}
	return postgres.NewTargetRepository(conn, log), checkers, conn.Close, nil
}

func buildService(cfg *config.Config, log logging.Logger, repo target.Repository, producer *kafka.Producer, metrics *prometheus.AppMetrics) (*visibility.Service, error) {
	guard := netguard.New(log)
	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.Fetcher.Timeout,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		MaxRedirects: cfg.Fetcher.MaxRedirects,
		UserAgent:    cfg.Fetcher.UserAgent,
	}, guard, log)

	heuristicGen := keyword.NewHeuristicGenerator(log)
	templateBuilder := prompt.NewTemplateBuilder(log)
	var (
		keywords keyword.Generator = heuristicGen
		prompts  prompt.Builder    = templateBuilder
		sampler  sampling.Sampler  = sampling.NewDeterministicSampler(cfg.Analysis.OccurrenceThreshold)
	)

	if cfg.Generator.Backend == config.GeneratorOpenAI {
		client, err := llmgen.NewClient(llmgen.Config{
			BaseURL:     cfg.Generator.BaseURL,
			APIKey:      cfg.Generator.APIKey,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			Timeout:     cfg.Generator.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		keywords = llmgen.NewGenerator(client, heuristicGen, log)
		prompts = llmgen.NewBuilder(client, templateBuilder, log)
		sampler = llmgen.NewSampler(client, sampler, log)
	}

	return visibility.NewService(visibility.Deps{
		Repo:          repo,
		Guard:         guard,
		Fetcher:       fetcher,
		Keywords:      keywords,
		Prompts:       prompts,
		Runner:        sampling.NewRunner(sampler, cfg.Analysis.Workers, log),
		Publisher:     producer,
		Metrics:       metrics,
		Log:           log,
		TrialsPerPair: cfg.Analysis.TrialsPerPair,
	})
}

type pgHealthChecker struct {
	conn *postgres.Connection
}

func (c pgHealthChecker) Name() string { return "postgres" }

func (c pgHealthChecker) Check(ctx context.Context) error {
	return c.conn.HealthCheck(ctx)
}
