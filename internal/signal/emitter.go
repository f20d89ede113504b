package signal

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/setup"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

var (
	// ErrNoStopReference means no zone or swing exists to anchor the stop.
	ErrNoStopReference = errors.New("no stop reference")
	// ErrStopSide means the computed stop landed on the wrong side of the
	// entry. The signal is discarded rather than repaired.
	ErrStopSide = errors.New("stop on wrong side of entry")
)

// Emitter builds signals from confirmed episodes. Stop placement follows
// the configured method; the target is the farther of the most recent
// confirmed opposing swing beyond the entry and the minimum risk-reward
// floor.
type Emitter struct {
	cfg        config.EntryConfig
	strategyID string
	symbol     string
	logger     zerolog.Logger
}

func NewEmitter(cfg config.EntryConfig, strategyID, symbol string, logger zerolog.Logger) *Emitter {
	return &Emitter{
		cfg:        cfg,
		strategyID: strategyID,
		symbol:     symbol,
		logger:     logger.With().Str("component", "signal").Logger(),
	}
}

// Build assembles the signal for a triggered entry. a is the analysis of
// the timeframe the trigger fired on.
func (e *Emitter) Build(a *structure.Analysis, trig *setup.TriggerResult, ep *setup.Episode) (*Signal, error) {
	dir := FromStructure(ep.Direction)
	entry := trig.Price

	stop, err := e.stopPrice(a, trig.Index, ep, dir, entry)
	if err != nil {
		return nil, err
	}
	if dir == Buy && stop >= entry || dir == Sell && stop <= entry {
		return nil, fmt.Errorf("%w: entry %v stop %v", ErrStopSide, entry, stop)
	}

	risk := entry - stop
	if dir == Sell {
		risk = stop - entry
	}
	target := e.targetPrice(a, trig.Index, dir, entry, risk)

	sig := &Signal{
		ID:         NewID(),
		StrategyID: e.strategyID,
		Symbol:     e.symbol,
		Time:       a.Series.Time(trig.Index),
		BarIndex:   trig.Index,
		Direction:  dir,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		Reason:     trig.Reason,
		Trace:      trace(ep, trig),
	}
	sig.RiskReward = sig.Reward() / sig.Risk()

	e.logger.Info().
		Str("signal_id", sig.ID).
		Str("direction", string(dir)).
		Float64("entry", entry).
		Float64("stop", stop).
		Float64("target", target).
		Float64("rr", sig.RiskReward).
		Str("reason", trig.Reason).
		Msg("signal built")
	return sig, nil
}

func (e *Emitter) stopPrice(a *structure.Analysis, i int, ep *setup.Episode, dir Direction, entry float64) (float64, error) {
	switch e.cfg.StopMethod {
	case "zone":
		if ep.Gap == nil {
			return 0, ErrNoStopReference
		}
		if dir == Buy {
			return ep.Gap.Bottom - e.cfg.StopBuffer, nil
		}
		return ep.Gap.Top + e.cfg.StopBuffer, nil

	case "swing":
		kind := structure.SwingLow
		if dir == Sell {
			kind = structure.SwingHigh
		}
		sp := a.LastSwing(i, kind)
		if sp == nil {
			return 0, ErrNoStopReference
		}
		buffer := e.cfg.StopBuffer
		if e.cfg.StopATRMult > 0 {
			buffer += e.cfg.StopATRMult * a.ATRAt(i)
		}
		if dir == Buy {
			return sp.Price - buffer, nil
		}
		return sp.Price + buffer, nil

	default:
		return 0, fmt.Errorf("unknown stop method %q", e.cfg.StopMethod)
	}
}

// targetPrice scans recent confirmed opposing swings for one beyond the
// entry; the minimum risk-reward floor wins when it is farther, so the
// target never undercuts the floor.
func (e *Emitter) targetPrice(a *structure.Analysis, i int, dir Direction, entry, risk float64) float64 {
	floor := entry + e.cfg.MinRiskReward*risk
	kind := structure.SwingHigh
	if dir == Sell {
		floor = entry - e.cfg.MinRiskReward*risk
		kind = structure.SwingLow
	}

	target := floor
	for _, sp := range a.SwingsBefore(i, kind, e.cfg.TargetSwingScan) {
		if dir == Buy && sp.Price > entry {
			if sp.Price > target {
				target = sp.Price
			}
			break
		}
		if dir == Sell && sp.Price < entry {
			if sp.Price < target {
				target = sp.Price
			}
			break
		}
	}
	return target
}

func trace(ep *setup.Episode, trig *setup.TriggerResult) []string {
	out := []string{
		fmt.Sprintf("sweep@%d level %g", ep.SweepIndex, ep.SweepLevel),
		fmt.Sprintf("displacement@%d", ep.DisplacementIndex),
	}
	if ep.Gap != nil {
		out = append(out, fmt.Sprintf("fvg@%d [%g, %g]", ep.Gap.Index, ep.Gap.Bottom, ep.Gap.Top))
	}
	out = append(out,
		fmt.Sprintf("shift@%d level %g", ep.ShiftIndex, ep.ShiftLevel),
		fmt.Sprintf("retrace@%d", ep.RetraceIndex),
		fmt.Sprintf("%s@%d", trig.Reason, trig.Index),
	)
	return out
}
