// Package vectorstore wraps Qdrant as the similarity index over snapshot
// embeddings, grounded on original_source/trading-data-services/src/rag/vector_store.rs.
// The pack carries no Go source against qdrant/go-client (only manifest
// evidence from the intelligencedev-manifold example), so the call shapes
// here follow the published go-client API rather than a pack file.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
)

// EmbeddingDim is the fixed dimensionality of bge-small-en-v1.5 embeddings.
const EmbeddingDim = 384

// Store wraps a Qdrant collection used to index snapshot embeddings.
type Store struct {
	client     *qdrant.Client
	collection string
}

// Config describes how to reach Qdrant.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// New dials Qdrant and returns a Store bound to Config.Collection.
func New(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect qdrant: %w", err)
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("collection", cfg.Collection).
		Msg("connected to qdrant")

	return &Store{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the collection if it does not already exist.
// Qdrant returns an error for an existing collection. Any create error is
// logged and treated as success, matching the teacher's "already exists or
// error" log-and-continue; an existing collection is not told apart from
// other create failures.
func (s *Store) EnsureCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     EmbeddingDim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		log.Info().Str("collection", s.collection).Err(err).
			Msg("collection already exists or create failed, continuing")
		return nil
	}

	log.Info().Str("collection", s.collection).Msg("created qdrant collection")
	return nil
}

// Name identifies this dependency in health check output.
func (s *Store) Name() string { return "qdrant" }

// Check verifies the collection is reachable, satisfying
// observability.HealthChecker.
func (s *Store) Check() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

// Upsert writes points to the collection. A no-op on an empty slice.
func (s *Store) Upsert(ctx context.Context, points []*qdrant.PointStruct) error {
	if len(points) == 0 {
		return nil
	}

	log.Info().Int("count", len(points)).Str("collection", s.collection).Msg("upserting points")

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

// SearchParams configures a similarity query.
type SearchParams struct {
	Vector         []float32
	Limit          uint64
	Filter         *qdrant.Filter
	ScoreThreshold *float32
}

// Search runs a kNN query and returns the raw scored points with payload.
func (s *Store) Search(ctx context.Context, params SearchParams) ([]*qdrant.ScoredPoint, error) {
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(params.Vector...),
		Limit:          qdrant.PtrOf(params.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if params.Filter != nil {
		query.Filter = params.Filter
	}
	if params.ScoreThreshold != nil {
		query.ScoreThreshold = params.ScoreThreshold
	}

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	return result, nil
}

// SnapshotToPoint builds the Qdrant point for a snapshot + its embedding,
// mirroring the teacher's snapshot_to_point payload field-for-field.
func SnapshotToPoint(s *snapshot.MarketStateSnapshot, embedding []float32, pointID uint64) *qdrant.PointStruct {
	gitSHA := os.Getenv("GIT_SHA")
	if gitSHA == "" {
		gitSHA = "dev"
	}

	date := time.UnixMilli(s.Timestamp).UTC().Format(time.RFC3339)

	payload := map[string]any{
		"symbol":    s.Symbol,
		"timestamp": s.Timestamp,
		"price":     s.Price,
		"date":      date,

		"rsi_7":     s.RSI7,
		"rsi_14":    s.RSI14,
		"macd":      s.MACD,
		"ema_ratio": s.EMARatio2050(),

		"oi_delta_pct":  s.OIDeltaPct(),
		"funding_rate":  s.FundingRate,

		"atr_3_4h":          s.ATR34h,
		"atr_14_4h":         s.ATR144h,
		"volatility_ratio":  s.VolatilityRatio(),

		"price_change_1h": s.PriceChange1h,
		"price_change_4h": s.PriceChange4h,

		"outcome_15m":     derefOrNil(s.Outcome15m),
		"outcome_1h":      derefOrNil(s.Outcome1h),
		"outcome_4h":      derefOrNil(s.Outcome4h),
		"outcome_24h":     derefOrNil(s.Outcome24h),
		"max_runup_1h":    derefOrNil(s.MaxRunup1h),
		"max_drawdown_1h": derefOrNil(s.MaxDrawdown1h),
		"hit_stop_loss":   derefBoolOrNil(s.HitStopLoss),
		"hit_take_profit": derefBoolOrNil(s.HitTakeProfit),

		"schema_version":  1,
		"feature_version": "v1_nofx_3m4h",
		"embedding_model": "bge-small-en-v1.5",
		"embedding_dim":   EmbeddingDim,
		"build_id":        gitSHA,
	}

	return qdrant.NewPointStruct(pointID, embedding, qdrant.NewValueMap(payload))
}

func derefOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefBoolOrNil(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
