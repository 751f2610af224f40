package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/ragpatterns/internal/config"
	"github.com/sawpanic/ragpatterns/internal/embedding"
	"github.com/sawpanic/ragpatterns/internal/infrastructure/httpclient"
	"github.com/sawpanic/ragpatterns/internal/observability"
	"github.com/sawpanic/ragpatterns/internal/retrieval"
	"github.com/sawpanic/ragpatterns/internal/rpc"
	"github.com/sawpanic/ragpatterns/internal/vectorstore"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string
	var host string
	var port int
	var minMatches int

	rootCmd := &cobra.Command{
		Use:     "ragserve",
		Short:   "Serve rag.query_patterns over line-delimited JSON-RPC 2.0",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, host, port, minMatches)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML server config")
	rootCmd.Flags().StringVar(&host, "host", "", "bind host (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "bind port (overrides config)")
	rootCmd.Flags().IntVar(&minMatches, "min-matches", 0, "minimum matches required (overrides config)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("ragserve failed")
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath, hostOverride string, portOverride, minMatchesOverride int) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	if hostOverride != "" {
		cfg.Host = hostOverride
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}
	if minMatchesOverride != 0 {
		cfg.MinMatches = minMatchesOverride
	}
	applyLogLevel(cfg.LogLevel)

	log.Info().Msg("initializing RAG components...")

	store, err := vectorstore.New(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
	})
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	pool := httpclient.NewObservedClientPool(httpclient.ClientConfig{
		Label:          "embedder",
		MaxConcurrency: 16,
		RequestTimeout: cfg.Embedder.Timeout,
		JitterRange:    [2]int{5, 50},
		MaxRetries:     3,
		BackoffBase:    200 * time.Millisecond,
		BackoffMax:     5 * time.Second,
		UserAgent:      "ragserve/" + version,
	}, metrics)
	var embedder embedding.Embedder = embedding.NewHTTPEmbedder(cfg.Embedder.BaseURL, pool)
	if cfg.Redis.Addr != "" {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, metrics)
	}

	retriever := retrieval.New(embedder, store, cfg.MinMatches, metrics)
	handler := rpc.NewQueryHandler(retriever, cfg.MinMatches, metrics)
	server := rpc.NewServer(cfg.Addr(), handler)

	mux := observability.NewAmbientMux(metrics, observability.NewHealthHandler(version, store))
	go func() {
		if err := mux.ListenAndServe(); err != nil {
			log.Warn().Err(err).Msg("ambient health/metrics server stopped")
		}
	}()

	log.Info().Msg("RAG components initialized successfully")
	return server.Run(ctx)
}

func applyLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}
