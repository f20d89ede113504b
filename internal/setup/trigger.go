package setup

import (
	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

// TriggerResult is a confirmed entry on the fine timeframe. Price is always
// the triggering bar's close; intrabar fills are never assumed.
type TriggerResult struct {
	Index  int
	Price  float64
	Reason string
}

// Trigger confirms entries on the fine timeframe once an episode is waiting
// for one. Two rules fire, checked in fixed priority order:
//
//  1. a structure event in the trade direction while the bar touches the
//     episode's zone, and
//  2. a micro liquidity sweep within the lookback window with displacement
//     in the trade direction on the current bar.
//
// The first rule that matches wins; the order never varies with data.
type Trigger struct {
	cfg config.EntryConfig
}

func NewTrigger(cfg config.EntryConfig) *Trigger {
	return &Trigger{cfg: cfg}
}

// Evaluate tests entry-timeframe bar i for a confirmed entry in dir against
// the episode zone. Returns nil when neither rule fires or the bar is too
// volatile to trust.
func (t *Trigger) Evaluate(a *structure.Analysis, i int, dir structure.Direction, zone *structure.Zone) *TriggerResult {
	if dir == structure.None || zone == nil {
		return nil
	}

	if t.cfg.MaxVolatilityATR > 0 {
		if atr := a.ATRAt(i); atr > 0 && a.Series.At(i).Range() > t.cfg.MaxVolatilityATR*atr {
			return nil
		}
	}

	if ev := a.EventAt(i, dir); ev != nil {
		if zone.Overlaps(a.Series.Low(i), a.Series.High(i)) {
			return &TriggerResult{Index: i, Price: a.Series.Close(i), Reason: "structure_in_zone"}
		}
	}

	if a.DisplacementAt(i) == dir && t.sweptRecently(a, i, dir) {
		return &TriggerResult{Index: i, Price: a.Series.Close(i), Reason: "sweep_displacement"}
	}

	return nil
}

func (t *Trigger) sweptRecently(a *structure.Analysis, i int, dir structure.Direction) bool {
	from := i - t.cfg.SweepLookback
	if from < 0 {
		from = -1
	}
	for j := i; j > from; j-- {
		if a.SweepAt(j, dir) != nil {
			return true
		}
	}
	return false
}
