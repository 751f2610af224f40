// Package breakers wraps sony/gobreaker for the two external calls retrieval
// and ingestion depend on: the vector store and the embedder. Adapted from
// the teacher's infra/breakers/breakers.go — same trip policy, generalized
// to a context-carrying Execute so callers can pass ctx-aware closures.
package breakers

import (
	"context"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/ragpatterns/internal/observability"
)

// Breaker wraps a single named circuit.
type Breaker struct{ cb *cb.CircuitBreaker }

// circuitStateValue maps a gobreaker state to the gauge value documented on
// observability.Metrics.CircuitState (0=closed, 1=half-open, 2=open).
func circuitStateValue(s cb.State) float64 {
	switch s {
	case cb.StateClosed:
		return 0
	case cb.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// New builds a breaker that trips after 3 consecutive failures, or when the
// failure ratio exceeds 5% over a window of at least 20 requests. metrics may
// be nil, in which case no CircuitState gauge is updated.
func New(name string, metrics *observability.Metrics) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	if metrics != nil {
		st.OnStateChange = func(name string, from, to cb.State) {
			metrics.CircuitState.WithLabelValues(name).Set(circuitStateValue(to))
		}
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the circuit, aborting early if ctx is already
// done before the call is attempted.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
}

// State reports the current circuit state name ("closed", "open", "half-open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
