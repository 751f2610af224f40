package kvstore

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func writeFixture(t *testing.T, path string) {
	t.Helper()
	db, err := bbolt.Open(path, 0644, nil)
	require.NoError(t, err, "open fixture db")
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketCandles3m))
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]float64{"close": 101.5})
		return b.Put(makeKey("BTC-USD", 1000), data)
	})
	require.NoError(t, err, "seed fixture db")
}

func TestOpenMissingPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nonexistent.db"))
	assert.Error(t, err, "expected error for missing path")
}

func TestReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.db")
	writeFixture(t, path)

	reader, err := Open(path)
	require.NoError(t, err, "open reader")
	defer reader.Close()

	data, found, err := reader.ReadCandles3m("BTC-USD", 1000)
	require.NoError(t, err)
	require.True(t, found, "expected to find seeded key")

	var candle map[string]float64
	require.NoError(t, json.Unmarshal(data, &candle))
	assert.Equal(t, 101.5, candle["close"])

	_, found, err = reader.ReadCandles3m("BTC-USD", 9999)
	require.NoError(t, err)
	assert.False(t, found, "expected missing key to report found=false")
}

func TestCheckHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.db")
	writeFixture(t, path)

	reader, err := Open(path)
	require.NoError(t, err, "open reader")
	defer reader.Close()

	assert.NoError(t, reader.Check(), "expected healthy check")
}
