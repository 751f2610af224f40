package rpc

import "fmt"

// Error is the Go-side error taxonomy mirroring original_source's RpcError
// enum. Code() and Data() let the server map any Error into the JSON-RPC
// error envelope without a type switch at the call site.
type Error struct {
	kind    errKind
	message string
	found   int
	required int
}

type errKind int

const (
	kindParseError errKind = iota
	kindInvalidRequest
	kindMethodNotFound
	kindInvalidParams
	kindInternalError
	kindInsufficientMatches
	kindSymbolNotFound
	kindQdrantError
	kindEmbeddingError
)

func (e *Error) Error() string {
	switch e.kind {
	case kindInsufficientMatches:
		return fmt.Sprintf("Insufficient matches: found %d, required %d", e.found, e.required)
	default:
		return e.message
	}
}

// Code returns the JSON-RPC error code for this error.
func (e *Error) Code() int {
	switch e.kind {
	case kindParseError:
		return CodeParseError
	case kindInvalidRequest:
		return CodeInvalidRequest
	case kindMethodNotFound:
		return CodeMethodNotFound
	case kindInvalidParams:
		return CodeInvalidParams
	case kindInsufficientMatches:
		return CodeInsufficientMatches
	case kindSymbolNotFound:
		return CodeSymbolNotFound
	case kindQdrantError:
		return CodeQdrantError
	case kindEmbeddingError:
		return CodeEmbeddingError
	default:
		return CodeInternalError
	}
}

// Data returns the optional error-specific data payload.
func (e *Error) Data() any {
	if e.kind == kindInsufficientMatches {
		return map[string]any{
			"matches_found": e.found,
			"min_required":  e.required,
			"suggestion":    "Try increasing lookback_days or reducing min_similarity",
		}
	}
	return nil
}

// NewParseError wraps a JSON decode failure.
func NewParseError(message string) *Error {
	return &Error{kind: kindParseError, message: fmt.Sprintf("Parse error: %s", message)}
}

// NewInvalidRequest flags a malformed JSON-RPC envelope.
func NewInvalidRequest(message string) *Error {
	return &Error{kind: kindInvalidRequest, message: fmt.Sprintf("Invalid request: %s", message)}
}

// NewMethodNotFound flags an unknown RPC method.
func NewMethodNotFound(method string) *Error {
	return &Error{kind: kindMethodNotFound, message: fmt.Sprintf("Method not found: %s", method)}
}

// NewInvalidParams flags a malformed params object.
func NewInvalidParams(message string) *Error {
	return &Error{kind: kindInvalidParams, message: fmt.Sprintf("Invalid params: %s", message)}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string) *Error {
	return &Error{kind: kindInternalError, message: fmt.Sprintf("Internal error: %s", message)}
}

// NewInsufficientMatches reports the retrieval gate rejecting the query.
func NewInsufficientMatches(found, required int) *Error {
	return &Error{kind: kindInsufficientMatches, found: found, required: required}
}

// NewSymbolNotFound flags a symbol with no indexed history.
func NewSymbolNotFound(symbol string) *Error {
	return &Error{kind: kindSymbolNotFound, message: fmt.Sprintf("Symbol not found: %s", symbol)}
}

// NewQdrantError wraps a vector-store failure.
func NewQdrantError(message string) *Error {
	return &Error{kind: kindQdrantError, message: fmt.Sprintf("Qdrant error: %s", message)}
}

// NewEmbeddingError wraps an embedder failure.
func NewEmbeddingError(message string) *Error {
	return &Error{kind: kindEmbeddingError, message: fmt.Sprintf("Embedding error: %s", message)}
}
