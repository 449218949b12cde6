package stream

import (
	"context"
	"time"

	"github.com/chazu/splashmap/pkg/splash"
)

// Frame is one live update of a particle session.
type Frame struct {
	Version uint64    `json:"version"`
	Frame   int       `json:"frame"`
	Active  int       `json:"active"`
	Hits    int       `json:"hits"`
	Done    bool      `json:"done"`
	Colors  []float32 `json:"colors"`
}

// Play steps s once per interval and hands a frame to sink after each step,
// until the session is done or ctx is cancelled. The last frame sent for a
// finished session has Done set. It returns the final snapshot.
func Play(ctx context.Context, s *splash.Session, interval time.Duration, version uint64, sink func(Frame)) (*splash.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return s.Snapshot(), err
		}
		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-ticker.C:
		}

		st := s.Step(0)
		snap := s.Snapshot()
		sink(Frame{
			Version: version,
			Frame:   st.Frame,
			Active:  st.Active,
			Hits:    st.Hits,
			Done:    s.Done(),
			Colors:  snap.VertexColors,
		})
	}
	r := s.Snapshot()
	r.Version = version
	return r, nil
}

// Serve plays s to every client of h.
func Serve(ctx context.Context, h *Hub, s *splash.Session, interval time.Duration, version uint64) (*splash.Result, error) {
	return Play(ctx, s, interval, version, func(f Frame) {
		// Broadcast only fails to encode, which a Frame cannot.
		_ = h.Broadcast(f)
	})
}
