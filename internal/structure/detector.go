package structure

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/series"
)

// Detector bundles the configured structure analyses behind one call.
type Detector struct {
	cfg    config.StructureConfig
	swings SwingDetector
	logger zerolog.Logger
}

// NewDetector builds a detector from config. The swing mode is resolved
// here so a bad mode fails at construction, not per bar.
func NewDetector(cfg config.StructureConfig, logger zerolog.Logger) (*Detector, error) {
	sd, err := NewSwingDetector(cfg.SwingMode, cfg.SwingLength)
	if err != nil {
		return nil, err
	}
	return &Detector{
		cfg:    cfg,
		swings: sd,
		logger: logger.With().Str("component", "structure").Logger(),
	}, nil
}

// Analysis holds every per-bar structure fact for one series. All facts at
// bar i are functions of bars 0..i only, so an Analysis of a prefix agrees
// with the same prefix of the full series.
type Analysis struct {
	Series       *series.Series
	Swings       []SwingPoint
	Events       []Event
	FVGs         []Zone
	Sweeps       []Sweep
	Displacement []Direction
	Rejection    []Direction
	TrueRange    []float64

	eventsAt map[int][]int
	sweepsAt map[int][]int
}

// Analyze runs every detector over the series.
func (d *Detector) Analyze(s *series.Series) *Analysis {
	return d.AnalyzeWithLevels(s, nil)
}

// AnalyzeWithLevels runs every detector and additionally tests the supplied
// liquidity levels (previous-day highs and lows) for sweeps, merged with the
// swing-based sweeps in bar order.
func (d *Detector) AnalyzeWithLevels(s *series.Series, levels []LiquidityLevel) *Analysis {
	a := &Analysis{
		Series:       s,
		Swings:       d.swings.Detect(s),
		FVGs:         DetectFVGs(s),
		Displacement: Displacements(s, d.cfg.DisplacementRatio, d.cfg.DisplacementWindow),
		Rejection:    RejectionCandles(s, d.cfg.RejectionWickRatio),
		TrueRange:    ATR(s, d.cfg.ATRPeriod),
	}
	a.Events = DetectEvents(s, a.Swings)
	a.Sweeps = DetectSweeps(s, a.Swings, d.cfg.SweepMinSize)
	if len(levels) > 0 {
		a.Sweeps = mergeSweeps(a.Sweeps, DetectLevelSweeps(s, levels, d.cfg.SweepMinSize))
	}

	a.eventsAt = make(map[int][]int, len(a.Events))
	for i, ev := range a.Events {
		a.eventsAt[ev.Index] = append(a.eventsAt[ev.Index], i)
	}
	a.sweepsAt = make(map[int][]int, len(a.Sweeps))
	for i, sw := range a.Sweeps {
		a.sweepsAt[sw.Index] = append(a.sweepsAt[sw.Index], i)
	}

	d.logger.Debug().
		Int("bars", s.Len()).
		Int("swings", len(a.Swings)).
		Int("events", len(a.Events)).
		Int("fvgs", len(a.FVGs)).
		Int("sweeps", len(a.Sweeps)).
		Msg("series analyzed")
	return a
}

// mergeSweeps interleaves two bar-ordered sweep lists.
func mergeSweeps(a, b []Sweep) []Sweep {
	out := make([]Sweep, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Index <= b[j].Index {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// OrderBlockFor locates the order block behind an event using the
// configured lookback and body settings.
func (d *Detector) OrderBlockFor(a *Analysis, ev *Event) *Zone {
	return FindOrderBlock(a.Series, ev.Index, ev.Direction,
		d.cfg.OrderBlockLookback, d.cfg.OrderBlockUseBody, d.cfg.RequireBreaker)
}

// EventAt returns the event at bar i in direction dir, or nil.
func (a *Analysis) EventAt(i int, dir Direction) *Event {
	for _, idx := range a.eventsAt[i] {
		if a.Events[idx].Direction == dir {
			return &a.Events[idx]
		}
	}
	return nil
}

// LastEventBefore returns the most recent event at or before bar i within
// lookback bars, any direction. Nil when none.
func (a *Analysis) LastEventBefore(i, lookback int) *Event {
	for j := len(a.Events) - 1; j >= 0; j-- {
		ev := &a.Events[j]
		if ev.Index > i {
			continue
		}
		if ev.Index <= i-lookback {
			return nil
		}
		return ev
	}
	return nil
}

// SweepAt returns the sweep at bar i in direction dir, or nil.
func (a *Analysis) SweepAt(i int, dir Direction) *Sweep {
	for _, idx := range a.sweepsAt[i] {
		if a.Sweeps[idx].Direction == dir {
			return &a.Sweeps[idx]
		}
	}
	return nil
}

// FVGAfter returns the first gap in direction dir anchored in (from, to].
func (a *Analysis) FVGAfter(from, to int, dir Direction) *Zone {
	for i := range a.FVGs {
		z := &a.FVGs[i]
		if z.Index <= from {
			continue
		}
		if z.Index > to {
			return nil
		}
		if z.Direction == dir {
			return z
		}
	}
	return nil
}

// LastSwing returns the most recent swing of kind confirmed at or before
// bar i, or nil.
func (a *Analysis) LastSwing(i int, kind SwingKind) *SwingPoint {
	for j := len(a.Swings) - 1; j >= 0; j-- {
		sp := &a.Swings[j]
		if sp.ConfirmedAt <= i && sp.Kind == kind {
			return sp
		}
	}
	return nil
}

// SwingsBefore returns swings of kind confirmed at or before bar i, most
// recent first, at most limit entries.
func (a *Analysis) SwingsBefore(i int, kind SwingKind, limit int) []SwingPoint {
	var out []SwingPoint
	for j := len(a.Swings) - 1; j >= 0 && len(out) < limit; j-- {
		sp := a.Swings[j]
		if sp.ConfirmedAt <= i && sp.Kind == kind {
			out = append(out, sp)
		}
	}
	return out
}

// DisplacementAt returns the displacement direction at bar i.
func (a *Analysis) DisplacementAt(i int) Direction { return a.Displacement[i] }

// RejectionAt returns the rejection-candle direction at bar i.
func (a *Analysis) RejectionAt(i int) Direction { return a.Rejection[i] }

// ATRAt returns the ATR at bar i, or 0 during warm-up.
func (a *Analysis) ATRAt(i int) float64 {
	v := a.TrueRange[i]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// ZonesNear returns FVG zones in direction dir anchored within searchBars
// before bar i, most recent first.
func (a *Analysis) ZonesNear(i, searchBars int, dir Direction) []Zone {
	var out []Zone
	for j := len(a.FVGs) - 1; j >= 0; j-- {
		z := a.FVGs[j]
		if z.Index > i {
			continue
		}
		if z.Index <= i-searchBars {
			break
		}
		if z.Direction == dir {
			out = append(out, z)
		}
	}
	return out
}
