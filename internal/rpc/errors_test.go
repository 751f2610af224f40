package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientMatchesCodeAndData(t *testing.T) {
	err := NewInsufficientMatches(2, 3)
	assert.Equal(t, CodeInsufficientMatches, err.Code())

	data, ok := err.Data().(map[string]any)
	require.True(t, ok, "expected map data payload")
	assert.Equal(t, 2, data["matches_found"])
	assert.Equal(t, 3, data["min_required"])
}

func TestMethodNotFoundCode(t *testing.T) {
	err := NewMethodNotFound("bogus.method")
	assert.Equal(t, CodeMethodNotFound, err.Code())
	assert.Nil(t, err.Data())
}

func TestParseErrorMessage(t *testing.T) {
	err := NewParseError("unexpected EOF")
	assert.Equal(t, "Parse error: unexpected EOF", err.Error())
}
