package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// Server is the line-delimited JSON-RPC 2.0 front end. One goroutine per
// connection, one request processed at a time per connection (no batching
// or pipelining), matching the teacher's handle_connection loop.
type Server struct {
	addr    string
	handler *QueryHandler
}

// NewServer builds a Server bound to addr ("host:port").
func NewServer(addr string, handler *QueryHandler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Run binds addr and accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: bind %s: %w", s.addr, err)
	}
	defer listener.Close()

	log.Info().Str("addr", s.addr).Msg("RAG JSON-RPC server listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("new connection")
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection reads newline-delimited requests and writes
// newline-delimited responses until the peer closes the connection or a read
// or write fails. Cancelling ctx does not close an open connection; ctx is
// only passed on to each request's handler.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			return
		}

		log.Debug().Str("remote", remote).Str("request", line).Msg("received request")

		response := s.processRequest(ctx, line)

		encoded, marshalErr := json.Marshal(response)
		if marshalErr != nil {
			log.Error().Err(marshalErr).Msg("failed to marshal response")
			return
		}
		encoded = append(encoded, '\n')
		if _, writeErr := conn.Write(encoded); writeErr != nil {
			log.Error().Err(writeErr).Str("remote", remote).Msg("failed to write response")
			return
		}

		if err != nil {
			// ReadString surfaced an error alongside a trailing partial line
			// (typically io.EOF) — the connection is done after this reply.
			return
		}
	}
}

// processRequest parses one line as a JSON-RPC request, validates it, and
// routes it to the appropriate method handler.
func (s *Server) processRequest(ctx context.Context, line string) any {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return errorResponse(nil, NewParseError(err.Error()))
	}

	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, NewInvalidRequest("JSON-RPC version must be 2.0"))
	}

	switch req.Method {
	case "rag.query_patterns":
		return s.handleQueryPatterns(ctx, req)
	default:
		return errorResponse(req.ID, NewMethodNotFound(req.Method))
	}
}

func (s *Server) handleQueryPatterns(ctx context.Context, req Request) (resp any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic in rag.query_patterns")
			resp = errorResponse(req.ID, NewInternalError(fmt.Sprintf("%v", r)))
		}
	}()

	if len(req.Params) == 0 {
		return errorResponse(req.ID, NewInvalidParams("missing params"))
	}

	if err := validateRequiredQueryPatternsFields(req.Params); err != nil {
		return errorResponse(req.ID, NewInvalidParams(err.Error()))
	}

	var params QueryPatternsRequest
	params.QueryConfig = DefaultQueryConfig()
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, NewInvalidParams(err.Error()))
	}

	result, rpcErr := s.handler.HandleQuery(ctx, params)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}

	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(id json.RawMessage, err *Error) ErrorResponse {
	return ErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: ErrorObject{
			Code:    err.Code(),
			Message: err.Error(),
			Data:    err.Data(),
		},
	}
}
