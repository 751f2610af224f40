package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryConfigDefaultsOnEmptyObject(t *testing.T) {
	var cfg QueryConfig
	require.NoError(t, json.Unmarshal([]byte(`{}`), &cfg))
	assert.Equal(t, DefaultQueryConfig(), cfg)
}

func TestQueryConfigPartialOverride(t *testing.T) {
	var cfg QueryConfig
	require.NoError(t, json.Unmarshal([]byte(`{"top_k": 10}`), &cfg))
	assert.Equal(t, uint64(10), cfg.TopK)

	defaults := DefaultQueryConfig()
	assert.Equal(t, defaults.LookbackDays, cfg.LookbackDays)
	assert.Equal(t, defaults.MinSimilarity, cfg.MinSimilarity)
	assert.Equal(t, defaults.IncludeRegimeFilters, cfg.IncludeRegimeFilters)
}

func TestQueryConfigFullOverride(t *testing.T) {
	var cfg QueryConfig
	raw := `{"lookback_days": 30, "top_k": 1, "min_similarity": 0.5, "include_regime_filters": false}`
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	want := QueryConfig{LookbackDays: 30, TopK: 1, MinSimilarity: 0.5, IncludeRegimeFilters: false}
	assert.Equal(t, want, cfg)
}

func TestValidateRequiredQueryPatternsFieldsRejectsUnknownOnlyPayload(t *testing.T) {
	err := validateRequiredQueryPatternsFields(json.RawMessage(`{"invalid":"x"}`))
	assert.Error(t, err, "params missing symbol/timestamp/current_state should be rejected")
}

func TestValidateRequiredQueryPatternsFieldsRejectsEmptySymbol(t *testing.T) {
	err := validateRequiredQueryPatternsFields(json.RawMessage(`{"symbol":"","timestamp":1,"current_state":{}}`))
	assert.Error(t, err, "empty symbol should be rejected")
}

func TestValidateRequiredQueryPatternsFieldsAcceptsCompletePayload(t *testing.T) {
	err := validateRequiredQueryPatternsFields(json.RawMessage(`{"symbol":"BTC-USD","timestamp":1,"current_state":{}}`))
	assert.NoError(t, err)
}
