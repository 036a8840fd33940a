package heuristic

import (
	"sync"

	"sygus/internal/term"
)

// Recorder wraps a Heuristic and keeps every Feedback it is sent. It is
// the hook an offline trainer attaches to collect rejected candidates and
// their counterexamples.
type Recorder struct {
	Heuristic

	mu       sync.Mutex
	feedback []Feedback
}

func NewRecorder(h Heuristic) *Recorder {
	return &Recorder{Heuristic: h}
}

func (r *Recorder) Observe(f Feedback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, f)
}

// Feedback returns a copy of everything observed so far.
func (r *Recorder) Feedback() []Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Feedback(nil), r.feedback...)
}

// Score delegates to the wrapped heuristic.
func (r *Recorder) Score(site Site, partial *term.Expr) []float64 {
	return r.Heuristic.Score(site, partial)
}
