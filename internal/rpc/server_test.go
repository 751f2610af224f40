package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRequestParseError(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), "not json\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeParseError, errResp.Error.Code)
}

func TestProcessRequestWrongVersion(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"1.0","method":"rag.query_patterns","id":1}`+"\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeInvalidRequest, errResp.Error.Code)
}

func TestProcessRequestMethodNotFound(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"2.0","method":"bogus","id":1}`+"\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeMethodNotFound, errResp.Error.Code)
}

func TestProcessRequestMissingParams(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"2.0","method":"rag.query_patterns","id":1}`+"\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeInvalidParams, errResp.Error.Code)
}

func TestProcessRequestIncompleteParamsMissingRequiredFields(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"2.0","method":"rag.query_patterns","params":{"invalid":"x"},"id":1}`+"\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeInvalidParams, errResp.Error.Code, "params missing symbol/timestamp/current_state must be rejected")
}

func TestProcessRequestEmptySymbolRejected(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"2.0","method":"rag.query_patterns","params":{"symbol":"","timestamp":1,"current_state":{}},"id":1}`+"\n")
	errResp, ok := resp.(ErrorResponse)
	require.True(t, ok, "expected ErrorResponse, got %T", resp)
	assert.Equal(t, CodeInvalidParams, errResp.Error.Code, "empty symbol must be rejected")
}

func TestErrorResponsePreservesRequestID(t *testing.T) {
	s := &Server{}
	resp := s.processRequest(context.Background(), `{"jsonrpc":"2.0","method":"bogus","id":42}`+"\n")
	errResp := resp.(ErrorResponse)
	var id int
	require.NoError(t, json.Unmarshal(errResp.ID, &id))
	assert.Equal(t, 42, id)
}
