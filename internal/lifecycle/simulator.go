// Package lifecycle replays a signal against subsequent bars: fills with
// costs, lock-in and trailing stop management, and final classification.
package lifecycle

import (
	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/series"
	"github.com/marvelous3500/bot-sub000/internal/signal"
)

// Outcome classifies a finished or running trade.
type Outcome int

const (
	Open Outcome = iota
	Win
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Loss:
		return "loss"
	default:
		return "open"
	}
}

// Trade is the replayed life of one signal. Entry already includes the
// half-spread; PnL includes every cost. RMultiple is measured against the
// spread-adjusted stop distance. A stop-out at the original, unmoved stop
// reports R 0 with the loss carried in PnL; a moved stop reports where it
// really exited.
type Trade struct {
	SignalID      string
	Direction     signal.Direction
	Entry         float64
	InitialStop   float64
	Stop          float64
	Target        float64
	Size          float64
	EntryIndex    int
	ExitIndex     int
	ExitPrice     float64
	Outcome       Outcome
	RMultiple     float64
	PnL           float64
	StopMoved     bool
	Trailed       bool
	MaxFavorableR float64
	MaxAdverseR   float64
}

// Simulator replays signals under one cost and management configuration.
type Simulator struct {
	cfg    config.LifecycleConfig
	logger zerolog.Logger
}

func NewSimulator(cfg config.LifecycleConfig, logger zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Size returns the position size for a stop distance at the current
// balance. The distance is the spread-adjusted one the trade is actually
// simulated against. Percent mode risks a fixed fraction of the balance
// over that distance, so size compounds with the balance; fixed mode
// always trades the configured size.
func (s *Simulator) Size(riskDist, balance float64) float64 {
	if riskDist <= 0 {
		return 0
	}
	if s.cfg.SizingMode == "fixed" {
		return s.cfg.FixedSize
	}
	return balance * s.cfg.RiskPercent / (riskDist * s.cfg.PerPointValue)
}

// Run replays sig from its entry bar to the end of ser. Each bar after the
// entry bar is processed in a fixed order: arm the lock-in, tighten the
// trail, test the stop, test the target. The stop is tested before the
// target, so a bar that spans both counts as a loss. A trade that never
// exits stays Open with mark-to-market PnL at the last close.
func (s *Simulator) Run(ser *series.Series, sig *signal.Signal, balance float64) *Trade {
	dir := 1.0
	if sig.Direction == signal.Sell {
		dir = -1
	}

	entry := sig.Entry + dir*s.cfg.SpreadPoints/2
	riskDist := dir * (entry - sig.Stop)
	tr := &Trade{
		SignalID:    sig.ID,
		Direction:   sig.Direction,
		Entry:       entry,
		InitialStop: sig.Stop,
		Stop:        sig.Stop,
		Target:      sig.Target,
		Size:        s.Size(riskDist, balance),
		EntryIndex:  sig.BarIndex,
		ExitIndex:   -1,
	}
	if riskDist <= 0 || tr.Size <= 0 {
		tr.Outcome = Loss
		tr.ExitIndex = sig.BarIndex
		tr.ExitPrice = entry
		return tr
	}

	best := 0.0 // best favorable excursion in price units
	for i := sig.BarIndex + 1; i < ser.Len(); i++ {
		favorable := dir * (favorableExtreme(ser, i, dir) - entry)
		adverse := dir * (entry - adverseExtreme(ser, i, dir))
		if favorable > best {
			best = favorable
		}
		if r := favorable / riskDist; r > tr.MaxFavorableR {
			tr.MaxFavorableR = r
		}
		if r := adverse / riskDist; r > tr.MaxAdverseR {
			tr.MaxAdverseR = r
		}

		if s.cfg.LockInEnabled && best/riskDist >= s.cfg.LockInTriggerR {
			lock := entry + dir*s.cfg.LockInTargetR*riskDist
			if tighter(lock, tr.Stop, dir) {
				tr.Stop = lock
				tr.StopMoved = true
			}
		}

		if s.cfg.TrailingEnabled && best/riskDist >= s.cfg.TrailActivationR {
			trail := entry + dir*(best-s.cfg.TrailDistanceR*riskDist)
			if tighter(trail, tr.Stop, dir) {
				tr.Stop = trail
				tr.StopMoved = true
				tr.Trailed = true
			}
		}

		if dir*(adverseExtreme(ser, i, dir)-tr.Stop) <= 0 {
			s.exit(tr, i, tr.Stop-dir*s.cfg.SlippagePoints, riskDist, dir)
			s.classifyStop(tr)
			return tr
		}

		if dir*(favorableExtreme(ser, i, dir)-tr.Target) >= 0 {
			s.exit(tr, i, tr.Target, riskDist, dir)
			tr.Outcome = Win
			return tr
		}
	}

	// Still open: mark to the last close, no exit costs beyond commission.
	last := ser.Len() - 1
	tr.Outcome = Open
	tr.ExitIndex = last
	tr.ExitPrice = ser.Close(last)
	tr.RMultiple = dir * (tr.ExitPrice - entry) / riskDist
	tr.PnL = s.money(tr, dir)
	return tr
}

// exit finalizes price, R and money for a closed trade.
func (s *Simulator) exit(tr *Trade, i int, price, riskDist, dir float64) {
	tr.ExitIndex = i
	tr.ExitPrice = price
	tr.RMultiple = dir * (price - tr.Entry) / riskDist
	tr.PnL = s.money(tr, dir)
}

// classifyStop labels a stop exit. A moved stop that still banks a
// non-negative R is a win; everything else is a loss. A loss at the
// original stop zeroes the R column, leaving the damage in PnL.
func (s *Simulator) classifyStop(tr *Trade) {
	if tr.StopMoved && tr.RMultiple >= 0 {
		tr.Outcome = Win
		return
	}
	tr.Outcome = Loss
	if !tr.StopMoved {
		tr.RMultiple = 0
	}
}

// money converts the exit into account currency: price move times size and
// per-point value, minus commission on both fills.
func (s *Simulator) money(tr *Trade, dir float64) float64 {
	gross := dir * (tr.ExitPrice - tr.Entry) * tr.Size * s.cfg.PerPointValue
	return gross - 2*s.cfg.CommissionPerUnit*tr.Size
}

func favorableExtreme(ser *series.Series, i int, dir float64) float64 {
	if dir > 0 {
		return ser.High(i)
	}
	return ser.Low(i)
}

func adverseExtreme(ser *series.Series, i int, dir float64) float64 {
	if dir > 0 {
		return ser.Low(i)
	}
	return ser.High(i)
}

// tighter reports whether candidate is strictly closer to price than the
// current stop, in the protective direction.
func tighter(candidate, current float64, dir float64) bool {
	return dir*(candidate-current) > 0
}
