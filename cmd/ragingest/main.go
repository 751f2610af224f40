package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/ragpatterns/internal/assembler"
	"github.com/sawpanic/ragpatterns/internal/config"
	"github.com/sawpanic/ragpatterns/internal/embedding"
	"github.com/sawpanic/ragpatterns/internal/infrastructure/httpclient"
	"github.com/sawpanic/ragpatterns/internal/ingest"
	"github.com/sawpanic/ragpatterns/internal/kvstore"
	"github.com/sawpanic/ragpatterns/internal/observability"
	"github.com/sawpanic/ragpatterns/internal/persistence/postgres"
	"github.com/sawpanic/ragpatterns/internal/vectorstore"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string
	var symbolsFlag string
	var startFlag, endFlag string
	var mock bool

	rootCmd := &cobra.Command{
		Use:     "ragingest",
		Short:   "Ingest historical market snapshots into the pattern vector store",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), configPath, symbolsFlag, startFlag, endFlag, mock)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML ingest config")
	rootCmd.Flags().StringVar(&symbolsFlag, "symbols", "BTC-USD", "comma-separated symbols to ingest")
	rootCmd.Flags().StringVar(&startFlag, "start", "", "range start, RFC3339 (default: 24h ago)")
	rootCmd.Flags().StringVar(&endFlag, "end", "", "range end, RFC3339 (default: now)")
	rootCmd.Flags().BoolVar(&mock, "mock", false, "use synthetic snapshot data instead of the KV store")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("ragingest failed")
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, configPath, symbolsFlag, startFlag, endFlag string, mock bool) error {
	cfg, err := config.LoadIngestConfig(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	metrics := observability.NewMetrics()
	startHealthServer(metrics)

	symbols := strings.Split(symbolsFlag, ",")

	startTS, endTS, err := parseRange(startFlag, endFlag)
	if err != nil {
		return err
	}

	var extractor *assembler.Extractor
	if mock {
		log.Info().Msg("using mock snapshot extractor")
		extractor = assembler.NewMock()
	} else {
		reader, err := kvstore.Open(cfg.KVStorePath)
		if err != nil {
			return fmt.Errorf("open kv store: %w", err)
		}
		defer reader.Close()
		extractor = assembler.NewKV(reader)
	}

	pool := httpclient.NewObservedClientPool(httpclient.ClientConfig{
		Label:          "embedder",
		MaxConcurrency: 8,
		RequestTimeout: cfg.Embedder.Timeout,
		JitterRange:    [2]int{5, 50},
		MaxRetries:     3,
		BackoffBase:    200 * time.Millisecond,
		BackoffMax:     5 * time.Second,
		UserAgent:      "ragingest/" + version,
	}, metrics)
	var embedder embedding.Embedder = embedding.NewHTTPEmbedder(cfg.Embedder.BaseURL, pool)
	if cfg.Redis.Addr != "" {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, metrics)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
	})
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	var ledger postgres.LedgerRepo
	if cfg.Postgres.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres ledger: %w", err)
		}
		defer db.Close()
		ledger = postgres.NewLedgerRepo(db, cfg.Postgres.QueryTimeout)
	}

	pipeline := ingest.New(extractor, embedder, store, ledger, metrics)

	results, err := pipeline.IngestMultipleSymbols(ctx, symbols, startTS, endTS, int64(cfg.IntervalMinutes))
	for symbol, stats := range results {
		log.Info().Str("symbol", symbol).Int("snapshots", stats.SnapshotsCreated).
			Int("embeddings", stats.EmbeddingsGenerated).Int("points", stats.PointsUploaded).
			Msg("symbol ingestion summary")
	}
	return err
}

func parseRange(startFlag, endFlag string) (int64, int64, error) {
	end := time.Now()
	if endFlag != "" {
		t, err := time.Parse(time.RFC3339, endFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --end: %w", err)
		}
		end = t
	}

	start := end.Add(-24 * time.Hour)
	if startFlag != "" {
		t, err := time.Parse(time.RFC3339, startFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --start: %w", err)
		}
		start = t
	}

	return start.UnixMilli(), end.UnixMilli(), nil
}

func applyLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

func startHealthServer(metrics *observability.Metrics) {
	mux := observability.NewAmbientMux(metrics, observability.NewHealthHandler(version))
	go func() {
		if err := mux.ListenAndServe(); err != nil {
			log.Warn().Err(err).Msg("ambient health/metrics server stopped")
		}
	}()
}
