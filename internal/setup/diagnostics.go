package setup

import "github.com/rs/zerolog"

// Diagnostics receives every state transition. The engine wires a zerolog
// sink in production; tests use the in-memory Recorder to assert on the
// exact path an episode took.
type Diagnostics interface {
	Transition(from, to State, bar int, detail string)
}

// NopDiagnostics discards transitions.
type NopDiagnostics struct{}

func (NopDiagnostics) Transition(State, State, int, string) {}

// LogDiagnostics writes transitions to a structured logger.
type LogDiagnostics struct {
	logger zerolog.Logger
}

func NewLogDiagnostics(logger zerolog.Logger) *LogDiagnostics {
	return &LogDiagnostics{logger: logger.With().Str("component", "setup_diag").Logger()}
}

func (d *LogDiagnostics) Transition(from, to State, bar int, detail string) {
	d.logger.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("bar", bar).
		Str("detail", detail).
		Msg("transition")
}

// TransitionRecord is one recorded step.
type TransitionRecord struct {
	From   State
	To     State
	Bar    int
	Detail string
}

// Recorder keeps transitions in memory.
type Recorder struct {
	Records []TransitionRecord
}

func (r *Recorder) Transition(from, to State, bar int, detail string) {
	r.Records = append(r.Records, TransitionRecord{From: from, To: to, Bar: bar, Detail: detail})
}

// Reached reports whether any recorded transition landed in state s.
func (r *Recorder) Reached(s State) bool {
	for _, rec := range r.Records {
		if rec.To == s {
			return true
		}
	}
	return false
}
