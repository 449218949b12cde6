package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/splashmap/pkg/graph"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer Evaluate call started before this
// one finished.
var ErrSuperseded = errors.New("engine: evaluation superseded by newer request")

type evalResult struct {
	graph  *graph.SceneGraph
	errors []EvalError
	err    error
}

// wait blocks for the evaluation of generation gen. A timed out goroutine
// may keep running; its late result is dropped because nobody reads ch.
func (e *Engine) wait(ch <-chan evalResult, gen uint64) (*graph.SceneGraph, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.graph, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("engine: evaluation timed out after %s", EvalTimeout)
	}
}
