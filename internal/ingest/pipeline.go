// Package ingest drives the historical ingestion pipeline: extract snapshots
// -> format to text -> embed in batches -> upsert to the vector store ->
// record the run in the Postgres ledger. Grounded on
// original_source/trading-data-services/src/rag/ingestion_pipeline.rs.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/assembler"
	"github.com/sawpanic/ragpatterns/internal/domain/formatter"
	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
	"github.com/sawpanic/ragpatterns/internal/embedding"
	"github.com/sawpanic/ragpatterns/internal/infra/breakers"
	"github.com/sawpanic/ragpatterns/internal/observability"
	"github.com/sawpanic/ragpatterns/internal/persistence/postgres"
	"github.com/sawpanic/ragpatterns/internal/vectorstore"
)

// batchSize is the number of snapshots embedded per Embedder call, matching
// the teacher's BATCH_SIZE constant.
const batchSize = 100

// Stats summarizes the outcome of one ingestion run.
type Stats struct {
	SnapshotsCreated    int
	EmbeddingsGenerated int
	PointsUploaded      int
}

// Pipeline wires an Extractor, Embedder, and Store together into one
// end-to-end ingestion run per symbol.
type Pipeline struct {
	extractor    *assembler.Extractor
	embedder     embedding.Embedder
	store        *vectorstore.Store
	embedBreaker *breakers.Breaker
	storeBreaker *breakers.Breaker
	ledger       postgres.LedgerRepo
	metrics      *observability.Metrics
}

// New builds a Pipeline. ledger may be nil to skip run-ledger recording
// (useful for ad hoc or test invocations). metrics may be nil.
func New(extractor *assembler.Extractor, embedder embedding.Embedder, store *vectorstore.Store, ledger postgres.LedgerRepo, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:    extractor,
		embedder:     embedder,
		store:        store,
		embedBreaker: breakers.New("embedder", metrics),
		storeBreaker: breakers.New("vectorstore", metrics),
		ledger:       ledger,
		metrics:      metrics,
	}
}

func (p *Pipeline) recordError(step string) {
	if p.metrics != nil {
		p.metrics.IngestErrors.WithLabelValues(step).Inc()
	}
}

// IngestSymbolHistory extracts, embeds, and upserts all snapshots for symbol
// within [startTimestamp, endTimestamp), recording the run in the ledger.
func (p *Pipeline) IngestSymbolHistory(ctx context.Context, symbol string, startTimestamp, endTimestamp int64, intervalMinutes int64) (Stats, error) {
	startedAt := time.Now()
	startDate := time.UnixMilli(startTimestamp).UTC().Format(time.RFC3339)
	endDate := time.UnixMilli(endTimestamp).UTC().Format(time.RFC3339)

	log.Info().Str("symbol", symbol).Str("start", startDate).Str("end", endDate).
		Int64("interval_minutes", intervalMinutes).Msg("starting ingestion")

	stats := Stats{}

	var extractTimer *observability.StepTimer
	if p.metrics != nil {
		extractTimer = p.metrics.StartStepTimer("extract")
	}
	snapshots, err := p.extractor.ExtractSnapshots(symbol, startTimestamp, endTimestamp, intervalMinutes)
	if err != nil {
		if extractTimer != nil {
			extractTimer.Stop("error")
		}
		p.recordError("extract")
		p.recordRun(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes, stats, startedAt, err)
		return stats, fmt.Errorf("ingest: extract snapshots: %w", err)
	}
	if extractTimer != nil {
		extractTimer.Stop("ok")
	}

	stats.SnapshotsCreated = len(snapshots)
	if p.metrics != nil {
		p.metrics.SnapshotsIngested.WithLabelValues(symbol).Add(float64(len(snapshots)))
	}
	log.Info().Str("symbol", symbol).Int("count", len(snapshots)).Msg("created snapshots")

	if len(snapshots) == 0 {
		log.Warn().Str("symbol", symbol).Msg("no snapshots created")
		p.recordRun(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes, stats, startedAt, nil)
		return stats, nil
	}

	var allPoints []*vectorstoreUpsertable
	var pointID uint64

	for start := 0; start < len(snapshots); start += batchSize {
		end := start + batchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		batch := snapshots[start:end]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = formatter.ToEmbeddingText(s)
		}

		log.Info().Int("batch_size", len(texts)).Msg("generating embeddings for batch")

		var embedTimer *observability.StepTimer
		if p.metrics != nil {
			embedTimer = p.metrics.StartStepTimer("embed")
		}
		embeddings, err := p.embedBatch(ctx, texts)
		if err != nil {
			if embedTimer != nil {
				embedTimer.Stop("error")
			}
			p.recordError("embed")
			p.recordRun(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes, stats, startedAt, err)
			return stats, fmt.Errorf("ingest: embed batch: %w", err)
		}
		if embedTimer != nil {
			embedTimer.Stop("ok")
		}
		stats.EmbeddingsGenerated += len(embeddings)

		for i, s := range batch {
			allPoints = append(allPoints, &vectorstoreUpsertable{snapshot: s, embedding: embeddings[i], id: pointID})
			pointID++
		}

		log.Info().Int("batch_embeddings", len(embeddings)).Int("total", stats.EmbeddingsGenerated).
			Msg("processed batch")
	}

	if len(allPoints) > 0 {
		log.Info().Int("count", len(allPoints)).Msg("uploading points to vector store")
		var upsertTimer *observability.StepTimer
		if p.metrics != nil {
			upsertTimer = p.metrics.StartStepTimer("upsert")
		}
		if err := p.upsertPoints(ctx, allPoints); err != nil {
			if upsertTimer != nil {
				upsertTimer.Stop("error")
			}
			p.recordError("upsert")
			p.recordRun(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes, stats, startedAt, err)
			return stats, fmt.Errorf("ingest: upsert points: %w", err)
		}
		if upsertTimer != nil {
			upsertTimer.Stop("ok")
		}
		stats.PointsUploaded = int(pointID)
		log.Info().Int("count", stats.PointsUploaded).Msg("uploaded points")
	}

	log.Info().Str("symbol", symbol).Int("snapshots", stats.SnapshotsCreated).
		Int("embeddings", stats.EmbeddingsGenerated).Int("points", stats.PointsUploaded).
		Msg("ingestion complete")

	p.recordRun(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes, stats, startedAt, nil)
	return stats, nil
}

type vectorstoreUpsertable struct {
	snapshot  *snapshot.MarketStateSnapshot
	embedding []float32
	id        uint64
}

func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := p.embedBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return p.embedder.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

func (p *Pipeline) upsertPoints(ctx context.Context, items []*vectorstoreUpsertable) error {
	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		points[i] = vectorstore.SnapshotToPoint(item.snapshot, item.embedding, item.id)
	}

	_, err := p.storeBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, p.store.Upsert(ctx, points)
	})
	return err
}

// IngestMultipleSymbols ingests each symbol in turn, collecting per-symbol
// stats (and the first hard error encountered, after recording what ran).
func (p *Pipeline) IngestMultipleSymbols(ctx context.Context, symbols []string, startTimestamp, endTimestamp int64, intervalMinutes int64) (map[string]Stats, error) {
	results := make(map[string]Stats, len(symbols))
	for _, symbol := range symbols {
		log.Info().Str("symbol", symbol).Msg("processing symbol")
		stats, err := p.IngestSymbolHistory(ctx, symbol, startTimestamp, endTimestamp, intervalMinutes)
		if err != nil {
			return results, err
		}
		results[symbol] = stats
	}
	return results, nil
}

func (p *Pipeline) recordRun(ctx context.Context, symbol string, start, end, intervalMinutes int64, stats Stats, startedAt time.Time, runErr error) {
	if p.ledger == nil {
		return
	}

	status := "completed"
	var errMsg *string
	if runErr != nil {
		status = "failed"
		msg := runErr.Error()
		errMsg = &msg
	}
	completedAt := time.Now()

	run := postgres.IngestionRun{
		Symbol:              symbol,
		StartTimestamp:      start,
		EndTimestamp:        end,
		IntervalMinutes:     int(intervalMinutes),
		SnapshotsCreated:    stats.SnapshotsCreated,
		EmbeddingsGenerated: stats.EmbeddingsGenerated,
		PointsUploaded:      stats.PointsUploaded,
		Status:              status,
		ErrorMessage:        errMsg,
		StartedAt:           startedAt,
		CompletedAt:         &completedAt,
	}

	if _, err := p.ledger.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to record ingestion run in ledger")
	}
}
