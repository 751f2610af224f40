// Package kvstore provides read-only random access to historical candles and
// indicator frames, keyed by (symbol, timestamp) per timeframe. It wraps
// go.etcd.io/bbolt as the embedded, Go-idiomatic stand-in for the upstream
// producer's LMDB store (see original_source/trading-data-services/src/rag/lmdb_reader.rs) —
// four named buckets replace the four LMDB named databases, same key format.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.etcd.io/bbolt"

	"github.com/rs/zerolog/log"
)

// Sentinel errors distinguished by behavior, per spec §4.1.
var (
	// ErrPathNotFound is returned when the store directory does not exist.
	ErrPathNotFound = errors.New("kvstore: path not found")
	// ErrBackend wraps low-level I/O faults from the underlying bbolt file.
	ErrBackend = errors.New("kvstore: backend error")
)

const (
	bucketCandles3m     = "candles_3m"
	bucketCandles4h     = "candles_4h"
	bucketIndicators3m  = "indicators_3m"
	bucketIndicators4h  = "indicators_4h"
)

// Reader is a read-only handle onto the bbolt-backed historical store. It
// holds no mutable state after construction and is safe for concurrent
// callers — bbolt read transactions may run concurrently with each other.
type Reader struct {
	db *bbolt.DB
}

// Open opens the store directory's bbolt file in read-only mode. Returns
// ErrPathNotFound if path does not exist, ErrBackend wrapping any other
// open failure.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	db, err := bbolt.Open(path, 0444, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	return &Reader{db: db}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Name identifies this dependency in health check output.
func (r *Reader) Name() string { return "kvstore" }

// Check verifies the bbolt file is still readable, satisfying
// observability.HealthChecker.
func (r *Reader) Check() error {
	return r.db.View(func(tx *bbolt.Tx) error { return nil })
}

func makeKey(symbol string, timestampMS int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", symbol, timestampMS))
}

// read looks up bucket[key] and JSON-decodes it. Returns (nil, false, nil)
// when the bucket or key is absent — a missing key is not an error.
func (r *Reader) read(bucket string, symbol string, timestampMS int64) (json.RawMessage, bool, error) {
	var out json.RawMessage
	found := false

	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		v := b.Get(makeKey(symbol, timestampMS))
		if v == nil {
			return nil
		}
		found = true
		out = make(json.RawMessage, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return out, found, nil
}

// ReadIndicators3m reads 3-minute indicators for (symbol, t).
func (r *Reader) ReadIndicators3m(symbol string, t int64) (json.RawMessage, bool, error) {
	return r.read(bucketIndicators3m, symbol, t)
}

// ReadIndicators4h reads 4-hour indicators for (symbol, t).
func (r *Reader) ReadIndicators4h(symbol string, t int64) (json.RawMessage, bool, error) {
	return r.read(bucketIndicators4h, symbol, t)
}

// ReadCandles3m reads a 3-minute candle for (symbol, t).
func (r *Reader) ReadCandles3m(symbol string, t int64) (json.RawMessage, bool, error) {
	return r.read(bucketCandles3m, symbol, t)
}

// ReadCandles4h reads a 4-hour candle for (symbol, t).
func (r *Reader) ReadCandles4h(symbol string, t int64) (json.RawMessage, bool, error) {
	return r.read(bucketCandles4h, symbol, t)
}

// SeriesPoint pairs a timestamp with its raw JSON value.
type SeriesPoint struct {
	Timestamp int64
	Data      json.RawMessage
}

// ReadSeries3m reads up to count points at 3m spacing ending at endT,
// ordered oldest->newest. Missing points are logged and silently skipped —
// the returned slice may be shorter than count.
func (r *Reader) ReadSeries3m(symbol string, endT int64, intervalMS int64, count int) ([]SeriesPoint, error) {
	return r.readSeries(bucketIndicators3m, symbol, endT, intervalMS, count)
}

// ReadSeries4h reads up to count points at 4h spacing ending at endT,
// ordered oldest->newest. Missing points are logged and silently skipped.
func (r *Reader) ReadSeries4h(symbol string, endT int64, intervalMS int64, count int) ([]SeriesPoint, error) {
	return r.readSeries(bucketIndicators4h, symbol, endT, intervalMS, count)
}

func (r *Reader) readSeries(bucket, symbol string, endT, intervalMS int64, count int) ([]SeriesPoint, error) {
	out := make([]SeriesPoint, 0, count)
	for i := count - 1; i >= 0; i-- {
		ts := endT - int64(i)*intervalMS
		data, found, err := r.read(bucket, symbol, ts)
		if err != nil {
			return nil, err
		}
		if !found {
			log.Warn().Str("symbol", symbol).Int64("timestamp", ts).Str("bucket", bucket).
				Msg("missing series point, skipping")
			continue
		}
		out = append(out, SeriesPoint{Timestamp: ts, Data: data})
	}
	return out, nil
}

// QueryTimestamps3m enumerates candidate ticks at start, start+interval, …,
// <= end and returns those with existing 3m indicator data.
func (r *Reader) QueryTimestamps3m(symbol string, start, end, intervalMS int64) ([]int64, error) {
	var out []int64
	for t := start; t <= end; t += intervalMS {
		_, found, err := r.read(bucketIndicators3m, symbol, t)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, t)
		}
	}
	return out, nil
}
