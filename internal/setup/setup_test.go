package setup

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/series"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

func mkSeries(t *testing.T, bars []series.Bar) *series.Series {
	t.Helper()
	base := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i].Time = base.Add(time.Duration(i) * 15 * time.Minute)
	}
	s, err := series.New(bars)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

func ohlc(o, h, l, c float64) series.Bar {
	return series.Bar{Open: o, High: h, Low: l, Close: c}
}

// bullishEpisodeBars walks a complete bullish confirmation sequence:
// swing low at 2, sweep of it at 4, displacement at 5, gap anchored at 6,
// structure break at 6, retrace into the gap at 7.
func bullishEpisodeBars() []series.Bar {
	return []series.Bar{
		ohlc(10, 11, 9, 10.5),
		ohlc(10.5, 11.5, 9.5, 10),
		ohlc(10, 11, 8, 10.8),
		ohlc(10.8, 11.2, 9.5, 10.2),
		ohlc(10.2, 10.5, 7.5, 9.8),  // sweeps the 8.0 low, closes back above
		ohlc(9.8, 12.6, 9.7, 12.4),  // displacement, breaks the 11.5 high
		ohlc(12.4, 13.5, 12.0, 13.2), // leaves a gap above 10.5, breaks again
		ohlc(13.2, 13.3, 11.5, 12.1), // retraces into the gap
	}
}

func analyzerConfig() config.Config {
	cfg := config.Default()
	cfg.Structure.SwingLength = 1
	cfg.Structure.DisplacementWindow = 5
	return cfg
}

func analyze(t *testing.T, cfg config.Config, bars []series.Bar) *structure.Analysis {
	t.Helper()
	det, err := structure.NewDetector(cfg.Structure, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return det.Analyze(mkSeries(t, bars))
}

func TestMachineFullSequence(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())

	rec := &Recorder{}
	m := NewMachine(cfg.Setup, rec, zerolog.Nop())
	m.Start(structure.Bullish)

	var entryBar = -1
	for i := 0; i < a.Series.Len(); i++ {
		if m.Step(a, i) && entryBar < 0 {
			entryBar = i
		}
	}

	if entryBar != 7 {
		t.Fatalf("entry wait reached at bar %d, want 7 (records: %+v)", entryBar, rec.Records)
	}

	ep := m.Episode()
	if ep.SweepIndex != 4 || ep.SweepLevel != 8 {
		t.Errorf("sweep = bar %d level %v, want bar 4 level 8", ep.SweepIndex, ep.SweepLevel)
	}
	if ep.DisplacementIndex != 5 {
		t.Errorf("displacement bar = %d, want 5", ep.DisplacementIndex)
	}
	if ep.Gap == nil || ep.Gap.Index != 6 {
		t.Fatalf("gap = %+v, want anchored at bar 6", ep.Gap)
	}
	if ep.ShiftIndex != 6 {
		t.Errorf("shift bar = %d, want 6", ep.ShiftIndex)
	}
	if ep.RetraceIndex != 7 {
		t.Errorf("retrace bar = %d, want 7", ep.RetraceIndex)
	}

	// The recorder saw every intermediate state in order.
	wantPath := []State{
		StateAwaitSweep,
		StateAwaitDisplacement,
		StateAwaitFVG,
		StateAwaitStructureShift,
		StateAwaitRetrace,
		StateAwaitEntry,
	}
	if len(rec.Records) != len(wantPath) {
		t.Fatalf("recorded %d transitions, want %d: %+v", len(rec.Records), len(wantPath), rec.Records)
	}
	for i, want := range wantPath {
		if rec.Records[i].To != want {
			t.Errorf("transition %d landed in %v, want %v", i, rec.Records[i].To, want)
		}
	}
}

func TestMachineNeutralStaysIdle(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())

	m := NewMachine(cfg.Setup, nil, zerolog.Nop())
	m.Start(structure.None)
	for i := 0; i < a.Series.Len(); i++ {
		if m.Step(a, i) {
			t.Fatalf("idle machine advanced at bar %d", i)
		}
	}
	if m.State() != StateIdle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestMachineWrongDirectionIgnoresSweep(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())

	m := NewMachine(cfg.Setup, nil, zerolog.Nop())
	m.Start(structure.Bearish)
	for i := 0; i < a.Series.Len(); i++ {
		m.Step(a, i)
	}
	if m.State() != StateAwaitSweep {
		t.Errorf("bearish episode progressed on bullish facts: state %v", m.State())
	}
}

func TestMachineRearmOnBiasFlip(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())

	t.Run("flip before a sweep restarts the hunt", func(t *testing.T) {
		m := NewMachine(cfg.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		for i := 0; i < 4; i++ {
			m.Step(a, i) // quiet bars, still waiting for a sweep
		}
		m.Rearm(structure.Bearish)
		if m.Episode().Direction != structure.Bearish {
			t.Fatalf("direction = %v after rearm, want bearish", m.Episode().Direction)
		}
		// The bullish sweep at bar 4 no longer matches the hunt.
		m.Step(a, 4)
		if m.State() != StateAwaitSweep {
			t.Errorf("stale-direction sweep advanced the machine: %v", m.State())
		}
	})

	t.Run("flip to neutral parks the machine", func(t *testing.T) {
		m := NewMachine(cfg.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		m.Rearm(structure.None)
		if m.State() != StateIdle {
			t.Errorf("state = %v, want idle on neutral rearm", m.State())
		}
	})

	t.Run("no-op once a sweep is recorded", func(t *testing.T) {
		m := NewMachine(cfg.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		for i := 0; i <= 4; i++ {
			m.Step(a, i)
		}
		if m.State() != StateAwaitDisplacement {
			t.Fatalf("fixture did not record the sweep: %v", m.State())
		}
		m.Rearm(structure.Bearish)
		if m.State() != StateAwaitDisplacement || m.Episode().Direction != structure.Bullish {
			t.Errorf("rearm disturbed a live episode: state %v dir %v",
				m.State(), m.Episode().Direction)
		}
	})

	t.Run("same direction is a no-op", func(t *testing.T) {
		m := NewMachine(cfg.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		m.Rearm(structure.Bullish)
		if m.State() != StateAwaitSweep || m.Episode().Direction != structure.Bullish {
			t.Errorf("same-direction rearm changed the machine: state %v", m.State())
		}
	})
}

// TestMachineTimeoutBeatsLateGuard delays the displacement past the bar
// timeout. The guard would be satisfied on the very bar the episode times
// out; expiry must win.
func TestMachineTimeoutBeatsLateGuard(t *testing.T) {
	bars := []series.Bar{
		ohlc(10, 11, 9, 10.5),
		ohlc(10.5, 11.5, 9.5, 10),
		ohlc(10, 11, 8, 10.8),
		ohlc(10.8, 11.2, 9.5, 10.2),
		ohlc(10.2, 10.5, 7.5, 9.8), // sweep at 4
		ohlc(9.8, 10.2, 9.6, 10),   // quiet
		ohlc(10, 10.4, 9.7, 10.1),  // quiet
		ohlc(10.1, 13, 10.0, 12.8), // displacement arrives too late
	}
	cfg := analyzerConfig()
	cfg.Setup.TimeoutBars = 3
	a := analyze(t, cfg, bars)

	rec := &Recorder{}
	m := NewMachine(cfg.Setup, rec, zerolog.Nop())
	m.Start(structure.Bullish)
	for i := 0; i < a.Series.Len(); i++ {
		m.Step(a, i)
	}

	if m.State() != StateExpired {
		t.Fatalf("state = %v, want expired", m.State())
	}
	if rec.Reached(StateAwaitFVG) {
		t.Error("guard satisfied on the timeout bar advanced the episode")
	}
}

func TestMachineWallClockTimeout(t *testing.T) {
	cfg := analyzerConfig()
	cfg.Setup.TimeoutBars = 0
	cfg.Setup.TimeoutMinutes = 30 // two 15m bars
	bars := bullishEpisodeBars()
	a := analyze(t, cfg, bars)

	m := NewMachine(cfg.Setup, nil, zerolog.Nop())
	m.Start(structure.Bullish)
	for i := 0; i < a.Series.Len(); i++ {
		m.Step(a, i)
	}
	if m.State() != StateExpired {
		t.Errorf("state = %v, want expired by wall clock", m.State())
	}
}

func TestMachineEmitCap(t *testing.T) {
	cfg := analyzerConfig()
	cfg.Setup.MaxSignals = 2
	m := NewMachine(cfg.Setup, nil, zerolog.Nop())
	m.Start(structure.Bullish)

	m.NoteEmit(10)
	if m.State().Terminal() {
		t.Fatal("terminated below the cap")
	}
	m.NoteEmit(11)
	if m.State() != StateEmitted {
		t.Errorf("state = %v, want emitted at cap", m.State())
	}
}

func TestMachineRejectionSubstitutesDisplacement(t *testing.T) {
	// Bar 5 is a pin bar, not a displacement: long lower wick, up close.
	bars := []series.Bar{
		ohlc(10, 11, 9, 10.5),
		ohlc(10.5, 11.5, 9.5, 10),
		ohlc(10, 11, 8, 10.8),
		ohlc(10.8, 11.2, 9.5, 10.2),
		ohlc(10.2, 10.5, 7.5, 9.8),   // sweep
		ohlc(9.8, 10.1, 7.8, 10.05),  // rejection candle
	}
	cfg := analyzerConfig()
	a := analyze(t, cfg, bars)

	t.Run("disabled", func(t *testing.T) {
		m := NewMachine(cfg.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		for i := 0; i < a.Series.Len(); i++ {
			m.Step(a, i)
		}
		if m.State() != StateAwaitDisplacement {
			t.Errorf("state = %v, want await_displacement", m.State())
		}
	})

	t.Run("enabled", func(t *testing.T) {
		c := cfg
		c.Setup.AcceptRejection = true
		m := NewMachine(c.Setup, nil, zerolog.Nop())
		m.Start(structure.Bullish)
		for i := 0; i < a.Series.Len(); i++ {
			m.Step(a, i)
		}
		if m.State() != StateAwaitFVG {
			t.Errorf("state = %v, want await_fvg after rejection candle", m.State())
		}
	})
}

func TestTriggerStructureInZone(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())
	zone := &structure.Zone{Top: 12.0, Bottom: 10.5, Direction: structure.Bullish}

	tr := NewTrigger(cfg.Entry)
	res := tr.Evaluate(a, 6, structure.Bullish, zone)
	if res == nil {
		t.Fatal("no trigger at bar 6")
	}
	if res.Reason != "structure_in_zone" {
		t.Errorf("reason = %q, want structure_in_zone", res.Reason)
	}
	if res.Price != a.Series.Close(6) {
		t.Errorf("price = %v, want the bar close %v", res.Price, a.Series.Close(6))
	}
}

func TestTriggerSweepDisplacement(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())
	// A zone well away from price disables the structure rule.
	zone := &structure.Zone{Top: 5, Bottom: 4, Direction: structure.Bullish}

	tr := NewTrigger(cfg.Entry)
	res := tr.Evaluate(a, 5, structure.Bullish, zone)
	if res == nil {
		t.Fatal("no trigger at bar 5")
	}
	if res.Reason != "sweep_displacement" {
		t.Errorf("reason = %q, want sweep_displacement", res.Reason)
	}
}

func TestTriggerVolatilityGate(t *testing.T) {
	cfg := analyzerConfig()
	cfg.Structure.ATRPeriod = 3
	cfg.Entry.MaxVolatilityATR = 0.1
	a := analyze(t, cfg, bullishEpisodeBars())
	zone := &structure.Zone{Top: 12.0, Bottom: 10.5, Direction: structure.Bullish}

	tr := NewTrigger(cfg.Entry)
	if res := tr.Evaluate(a, 6, structure.Bullish, zone); res != nil {
		t.Errorf("volatile bar triggered: %+v", res)
	}
}

func TestTriggerNoMatch(t *testing.T) {
	cfg := analyzerConfig()
	a := analyze(t, cfg, bullishEpisodeBars())
	zone := &structure.Zone{Top: 12.0, Bottom: 10.5, Direction: structure.Bullish}

	tr := NewTrigger(cfg.Entry)
	if res := tr.Evaluate(a, 3, structure.Bullish, zone); res != nil {
		t.Errorf("quiet bar triggered: %+v", res)
	}
	if res := tr.Evaluate(a, 6, structure.None, zone); res != nil {
		t.Errorf("neutral direction triggered: %+v", res)
	}
	if res := tr.Evaluate(a, 6, structure.Bullish, nil); res != nil {
		t.Errorf("nil zone triggered: %+v", res)
	}
}
