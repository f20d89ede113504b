// Package engine wires the full pipeline: timeframe aggregation, structure
// analysis, bias resolution, the confirmation state machine, the entry
// trigger, the risk gate and trade replay.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/bias"
	"github.com/marvelous3500/bot-sub000/internal/events"
	"github.com/marvelous3500/bot-sub000/internal/lifecycle"
	"github.com/marvelous3500/bot-sub000/internal/risk"
	"github.com/marvelous3500/bot-sub000/internal/series"
	"github.com/marvelous3500/bot-sub000/internal/setup"
	"github.com/marvelous3500/bot-sub000/internal/signal"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

// Engine processes one instrument on one strategy configuration.
type Engine struct {
	cfg      *config.Config
	det      *structure.Detector
	resolver *bias.Resolver
	machine  *setup.Machine
	trigger  *setup.Trigger
	emitter  *signal.Emitter
	gate     *risk.Gate
	sim      *lifecycle.Simulator
	bus      *events.Bus
	logger   zerolog.Logger
}

// AttachBus publishes signal and trade events to b as the engine runs.
func (e *Engine) AttachBus(b *events.Bus) { e.bus = b }

func (e *Engine) publish(t events.Type, data any) {
	if e.bus != nil {
		e.bus.Publish(t, data)
	}
}

// New builds an engine. Diagnostics may be nil.
func New(cfg *config.Config, diag setup.Diagnostics, logger zerolog.Logger) (*Engine, error) {
	cfg.ApplyDefaults()
	log := logger.With().Str("component", "engine").Str("strategy", cfg.Strategy.ID).Logger()

	det, err := structure.NewDetector(cfg.Structure, logger)
	if err != nil {
		return nil, fmt.Errorf("structure detector: %w", err)
	}
	return &Engine{
		cfg:      cfg,
		det:      det,
		resolver: bias.NewResolver(cfg.Bias, det, logger),
		machine:  setup.NewMachine(cfg.Setup, diag, logger),
		trigger:  setup.NewTrigger(cfg.Entry),
		emitter:  signal.NewEmitter(cfg.Entry, cfg.Strategy.ID, cfg.Strategy.Symbol, logger),
		gate:     risk.NewGate(cfg.Risk, cfg.SessionForHour, logger),
		sim:      lifecycle.NewSimulator(cfg.Lifecycle, logger),
		logger:   log,
	}, nil
}

// frame is one analyzed timeframe plus the bookkeeping to know which of its
// bars have closed as of a given wall-clock instant.
type frame struct {
	tf       series.Timeframe
	step     time.Duration
	analysis *structure.Analysis
}

// closedAt returns the index of the last bar fully closed at instant t, or
// -1 when none is.
func (f *frame) closedAt(t time.Time) int {
	i := f.analysis.Series.IndexAtOrBefore(t)
	for i >= 0 {
		if !f.analysis.Series.Time(i).Add(f.step).After(t) {
			return i
		}
		i--
	}
	return -1
}

// prevDayLevels derives the previous UTC day's high and low for each day in
// s, each pair active from the first bar of its day. Days without a prior
// daily bar contribute nothing.
func prevDayLevels(s, daily *series.Series) []structure.LiquidityLevel {
	var out []structure.LiquidityLevel
	var curDay time.Time
	for i := 0; i < s.Len(); i++ {
		day := s.Time(i).UTC().Truncate(24 * time.Hour)
		if i > 0 && day.Equal(curDay) {
			continue
		}
		curDay = day
		pdh, pdl, ok := series.PreviousDayLevels(daily, s.Time(i))
		if !ok {
			continue
		}
		out = append(out,
			structure.LiquidityLevel{FromIndex: i, Price: pdh, Kind: structure.SwingHigh},
			structure.LiquidityLevel{FromIndex: i, Price: pdl, Kind: structure.SwingLow},
		)
	}
	return out
}

func (e *Engine) buildFrame(entry *series.Series, tf series.Timeframe) (*frame, error) {
	step, err := tf.Duration()
	if err != nil {
		return nil, err
	}
	agg, err := series.Aggregate(entry, tf)
	if err != nil {
		return nil, err
	}
	return &frame{tf: tf, step: step, analysis: e.det.Analyze(agg)}, nil
}

// Run replays the strategy over a series of entry-timeframe bars and
// returns every signal and trade it produced. The walk is causal: each
// entry bar only consults higher-timeframe bars that had closed by that
// bar's own close.
func (e *Engine) Run(ctx context.Context, entry *series.Series) (*Result, error) {
	if entry.Len() == 0 {
		return nil, series.ErrEmpty
	}
	entryStep, err := series.Timeframe(e.cfg.Strategy.EntryTimeframe).Duration()
	if err != nil {
		return nil, err
	}

	setupFrame, err := e.buildFrame(entry, series.Timeframe(e.cfg.Strategy.SetupTimeframe))
	if err != nil {
		return nil, fmt.Errorf("setup timeframe: %w", err)
	}
	if e.cfg.Structure.UsePrevDayLevels {
		daily, err := series.Aggregate(entry, series.TF1d)
		if err != nil {
			return nil, fmt.Errorf("daily levels: %w", err)
		}
		levels := prevDayLevels(setupFrame.analysis.Series, daily)
		setupFrame.analysis = e.det.AnalyzeWithLevels(setupFrame.analysis.Series, levels)
	}
	biasFrames := make([]*frame, 0, 1+len(e.cfg.Bias.ExtraTimeframes))
	for _, tf := range append([]string{e.cfg.Strategy.BiasTimeframe}, e.cfg.Bias.ExtraTimeframes...) {
		f, err := e.buildFrame(entry, series.Timeframe(tf))
		if err != nil {
			return nil, fmt.Errorf("bias timeframe %s: %w", tf, err)
		}
		biasFrames = append(biasFrames, f)
	}
	entryAnalysis := e.det.Analyze(entry)

	res := &Result{InitialBalance: e.cfg.Risk.InitialBalance}
	balance := res.InitialBalance
	res.EquityCurve = append(res.EquityCurve, balance)

	steppedSetup := -1
	openUntil := -1

	for i := 0; i < entry.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := entry.Time(i).Add(entryStep)

		// Step the machine over every setup bar that closed by now.
		for j := setupFrame.closedAt(now); steppedSetup < j; {
			steppedSetup++
			if e.machine.State() == setup.StateIdle || e.machine.State().Terminal() {
				e.machine.Start(e.resolveBias(biasFrames, now))
			} else if e.machine.State() == setup.StateAwaitSweep {
				// A bias flip before any sweep restarts the hunt so the
				// episode never chases a direction the resolver dropped.
				e.machine.Rearm(e.resolveBias(biasFrames, now))
			}
			prev := e.machine.State()
			e.machine.Step(setupFrame.analysis, steppedSetup)
			if prev != setup.StateExpired && e.machine.State() == setup.StateExpired {
				e.publish(events.EpisodeExpired, e.machine.Episode())
			}
		}

		if e.machine.State() != setup.StateAwaitEntry || i <= openUntil {
			continue
		}
		if !e.cfg.InKillZone(entry.Time(i).UTC().Hour()) {
			continue
		}

		ep := e.machine.Episode()
		trig := e.trigger.Evaluate(entryAnalysis, i, ep.Direction, ep.Gap)
		if trig == nil {
			continue
		}

		sig, err := e.emitter.Build(entryAnalysis, trig, ep)
		if err != nil {
			e.logger.Debug().Err(err).Int("bar", i).Msg("signal discarded")
			continue
		}
		res.Signals = append(res.Signals, sig)
		e.machine.NoteEmit(i)
		e.publish(events.SignalGenerated, sig)

		if ok, reason := e.gate.Allow(sig, e.cfg.Lifecycle.SpreadPoints); !ok {
			res.Rejected = append(res.Rejected, RejectedSignal{Signal: sig, Reason: reason})
			e.publish(events.SignalRejected, sig)
			continue
		}

		trade := e.sim.Run(entry, sig, balance)
		e.gate.RecordTrade(sig.Time)
		e.publish(events.TradeOpened, trade)

		if trade.Outcome != lifecycle.Open {
			balance += trade.PnL
			e.gate.RecordPnL(entry.Time(trade.ExitIndex), trade.PnL)
			e.publish(events.TradeClosed, trade)
		}
		res.Trades = append(res.Trades, trade)
		res.EquityCurve = append(res.EquityCurve, balance)
		openUntil = trade.ExitIndex

		e.logger.Info().
			Str("signal_id", sig.ID).
			Str("outcome", trade.Outcome.String()).
			Float64("r", trade.RMultiple).
			Float64("balance", balance).
			Msg("trade replayed")
	}

	res.FinalBalance = balance
	res.finalize()
	return res, nil
}

// resolveBias combines the leans of every closed bias timeframe at instant
// now. Any frame without a closed bar yet is neutral, which vetoes the
// combination.
func (e *Engine) resolveBias(frames []*frame, now time.Time) structure.Direction {
	inputs := make([]bias.TimeframeBias, 0, len(frames))
	for _, f := range frames {
		lean := bias.Neutral
		if j := f.closedAt(now); j >= 0 {
			lean = e.resolver.ResolveAt(f.analysis, j)
		}
		inputs = append(inputs, bias.TimeframeBias{Timeframe: f.tf, Bias: lean})
	}
	return bias.Combine(e.cfg.Bias.CombinationPolicy, inputs)
}
