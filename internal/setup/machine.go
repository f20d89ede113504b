// Package setup runs the confirmation state machine. An episode hunts one
// direction through a fixed sequence of guards: liquidity sweep, displacement,
// fair value gap, structure shift, retrace into the gap. Guards only advance;
// a timeout expires the episode no matter which guard it is waiting on.
package setup

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

// State of the machine. The order is the order guards are satisfied in.
type State int

const (
	StateIdle State = iota
	StateAwaitSweep
	StateAwaitDisplacement
	StateAwaitFVG
	StateAwaitStructureShift
	StateAwaitRetrace
	StateAwaitEntry
	StateEmitted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitSweep:
		return "await_sweep"
	case StateAwaitDisplacement:
		return "await_displacement"
	case StateAwaitFVG:
		return "await_fvg"
	case StateAwaitStructureShift:
		return "await_structure_shift"
	case StateAwaitRetrace:
		return "await_retrace"
	case StateAwaitEntry:
		return "await_entry"
	case StateEmitted:
		return "emitted"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the episode is finished.
func (s State) Terminal() bool { return s == StateEmitted || s == StateExpired }

// Episode accumulates the facts the guards matched on. Fields fill in guard
// order and are never overwritten once set.
type Episode struct {
	Direction         structure.Direction
	SweepIndex        int
	SweepLevel        float64
	SweepTime         time.Time
	DisplacementIndex int
	Gap               *structure.Zone
	ShiftIndex        int
	ShiftLevel        float64
	RetraceIndex      int
	Emitted           int
}

// Machine advances one episode over setup-timeframe bars.
type Machine struct {
	cfg    config.SetupConfig
	state  State
	ep     Episode
	diag   Diagnostics
	logger zerolog.Logger
}

func NewMachine(cfg config.SetupConfig, diag Diagnostics, logger zerolog.Logger) *Machine {
	if diag == nil {
		diag = NopDiagnostics{}
	}
	return &Machine{
		cfg:    cfg,
		state:  StateIdle,
		diag:   diag,
		logger: logger.With().Str("component", "setup").Logger(),
	}
}

func (m *Machine) State() State      { return m.state }
func (m *Machine) Episode() *Episode { return &m.ep }

// Start arms a fresh episode hunting in dir. A neutral direction parks the
// machine in idle.
func (m *Machine) Start(dir structure.Direction) {
	m.ep = Episode{Direction: dir}
	if dir == structure.None {
		m.transition(StateIdle, -1, "no bias")
		return
	}
	m.transition(StateAwaitSweep, -1, "armed "+dir.String())
}

// Rearm restarts the episode in dir when the machine is still hunting a
// sweep for a different direction. Nothing has been recorded yet in that
// state, so a bias flip costs no episode facts; once a sweep is on record
// the episode keeps its original direction until it terminates.
func (m *Machine) Rearm(dir structure.Direction) {
	if m.state != StateAwaitSweep || dir == m.ep.Direction {
		return
	}
	m.Start(dir)
}

// NoteEmit records one emitted signal; the episode terminates once the cap
// is reached.
func (m *Machine) NoteEmit(bar int) {
	m.ep.Emitted++
	if m.ep.Emitted >= m.cfg.MaxSignals {
		m.transition(StateEmitted, bar, "signal cap reached")
	}
}

// Step feeds one setup-timeframe bar to the machine and reports whether the
// machine is awaiting the entry trigger afterwards. The timeout is checked
// before the bar's guards, so a guard satisfied on an expired bar does not
// rescue the episode. Guards may cascade within one bar, except the retrace,
// which must come on a later bar than the structure shift.
func (m *Machine) Step(a *structure.Analysis, i int) bool {
	if m.state == StateIdle || m.state.Terminal() {
		return false
	}

	if m.state != StateAwaitSweep && m.expired(a, i) {
		m.transition(StateExpired, i, "timeout")
		return false
	}

	d := m.ep.Direction
	for progressed := true; progressed; {
		progressed = false
		switch m.state {
		case StateAwaitSweep:
			if sw := a.SweepAt(i, d); sw != nil {
				m.ep.SweepIndex = sw.Index
				m.ep.SweepLevel = sw.Level
				m.ep.SweepTime = a.Series.Time(sw.Index)
				m.transition(StateAwaitDisplacement, i, "sweep")
				progressed = true
			}
		case StateAwaitDisplacement:
			if a.DisplacementAt(i) == d || (m.cfg.AcceptRejection && a.RejectionAt(i) == d) {
				m.ep.DisplacementIndex = i
				m.transition(StateAwaitFVG, i, "displacement")
				progressed = true
			}
		case StateAwaitFVG:
			if z := a.FVGAfter(m.ep.SweepIndex, i, d); z != nil {
				m.ep.Gap = z
				m.transition(StateAwaitStructureShift, i, "fvg")
				progressed = true
			}
		case StateAwaitStructureShift:
			if ev := a.EventAt(i, d); ev != nil {
				m.ep.ShiftIndex = ev.Index
				m.ep.ShiftLevel = ev.BrokenLevel
				m.transition(StateAwaitRetrace, i, ev.Kind.String())
				progressed = true
			}
		case StateAwaitRetrace:
			if i > m.ep.ShiftIndex && m.ep.Gap.Overlaps(a.Series.Low(i), a.Series.High(i)) {
				m.ep.RetraceIndex = i
				m.transition(StateAwaitEntry, i, "retrace")
				progressed = true
			}
		}
	}
	return m.state == StateAwaitEntry
}

// ExpireIfStale applies the timeout outside of Step, for callers that keep
// the machine in the entry-wait state while evaluating a finer timeframe.
func (m *Machine) ExpireIfStale(a *structure.Analysis, i int) bool {
	if m.state.Terminal() || m.state == StateIdle || m.state == StateAwaitSweep {
		return false
	}
	if m.expired(a, i) {
		m.transition(StateExpired, i, "timeout")
		return true
	}
	return false
}

func (m *Machine) expired(a *structure.Analysis, i int) bool {
	if m.cfg.TimeoutBars > 0 && i-m.ep.SweepIndex >= m.cfg.TimeoutBars {
		return true
	}
	if m.cfg.TimeoutMinutes > 0 {
		age := a.Series.Time(i).Sub(m.ep.SweepTime)
		if age >= time.Duration(m.cfg.TimeoutMinutes)*time.Minute {
			return true
		}
	}
	return false
}

func (m *Machine) transition(to State, bar int, detail string) {
	from := m.state
	m.state = to
	m.diag.Transition(from, to, bar, detail)
	m.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("bar", bar).
		Str("detail", detail).
		Msg("setup transition")
}
