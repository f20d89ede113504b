// Package bias resolves a directional lean per timeframe from recent
// structure and combines leans across timeframes into one tradeable bias.
package bias

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/series"
	"github.com/marvelous3500/bot-sub000/internal/structure"
)

// Neutral is the absence of a lean. Signals are never taken against a
// neutral bias; they are not taken at all.
const Neutral = structure.None

// Resolver derives the bias of an analyzed timeframe.
type Resolver struct {
	cfg    config.BiasConfig
	det    *structure.Detector
	logger zerolog.Logger
}

func NewResolver(cfg config.BiasConfig, det *structure.Detector, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		det:    det,
		logger: logger.With().Str("component", "bias").Logger(),
	}
}

// Resolve returns the bias of one timeframe as of its last bar.
func (r *Resolver) Resolve(a *structure.Analysis) structure.Direction {
	return r.ResolveAt(a, a.Series.Len()-1)
}

// ResolveAt returns the bias as of bar last: the direction of the most
// recent structure event within the lookback window, subject to the
// configured zone-respect and premium-discount filters. Bars after last are
// never consulted, so replays resolve the same bias live processing would
// have seen. Every filter failure collapses to Neutral, never to the
// opposite lean.
func (r *Resolver) ResolveAt(a *structure.Analysis, last int) structure.Direction {
	if last < 0 || last >= a.Series.Len() {
		return Neutral
	}
	ev := a.LastEventBefore(last, r.cfg.LookbackBars)
	if ev == nil {
		return Neutral
	}

	if r.cfg.RequireZoneRespect && !r.zoneRespected(a, ev, last) {
		r.logger.Debug().Int("event_bar", ev.Index).Msg("bias rejected, zone not respected")
		return Neutral
	}

	if r.cfg.UsePremiumDiscount {
		mid, ok := structure.Equilibrium(a.Series, r.cfg.EquilibriumLookback, last)
		if !ok {
			return Neutral
		}
		price := a.Series.Close(last)
		if ev.Direction == structure.Bullish && price >= mid {
			return Neutral
		}
		if ev.Direction == structure.Bearish && price <= mid {
			return Neutral
		}
	}
	return ev.Direction
}

// zoneRespected checks that price returned to a zone behind the event and
// visibly reacted from it by bar last. Candidate zones are gaps near the
// event plus the event's own order block; a reaction is a zone-side wick or
// a same-direction body clearing the configured share of the bar range.
func (r *Resolver) zoneRespected(a *structure.Analysis, ev *structure.Event, last int) bool {
	zones := a.ZonesNear(ev.Index, r.cfg.ZoneSearchBars, ev.Direction)
	if ob := r.det.OrderBlockFor(a, ev); ob != nil {
		zones = append(zones, *ob)
	}
	if len(zones) == 0 {
		return false
	}

	for _, z := range zones {
		end := ev.Index + r.cfg.ZoneReactionHorizon
		if end > last {
			end = last
		}
		for i := ev.Index + 1; i <= end; i++ {
			b := a.Series.At(i)
			if !z.Overlaps(b.Low, b.High) {
				continue
			}
			if reacted(b, ev.Direction, r.cfg.ReactionWickRatio, r.cfg.ReactionBodyRatio) {
				return true
			}
		}
	}
	return false
}

func reacted(b series.Bar, dir structure.Direction, wickRatio, bodyRatio float64) bool {
	rng := b.Range()
	if rng <= 0 {
		return false
	}
	if dir == structure.Bullish {
		if b.LowerWick()/rng >= wickRatio {
			return true
		}
		return b.Bullish() && b.Body()/rng >= bodyRatio
	}
	if b.UpperWick()/rng >= wickRatio {
		return true
	}
	return b.Bearish() && b.Body()/rng >= bodyRatio
}

// TimeframeBias pairs a timeframe with its resolved lean.
type TimeframeBias struct {
	Timeframe series.Timeframe
	Bias      structure.Direction
}

// Combine folds per-timeframe leans into one bias under the given policy.
// A single Neutral input forces Neutral regardless of policy: an undecided
// timeframe is a veto, not an abstention.
//
// Policies: "unanimous" requires every lean to agree; "majority" takes the
// more common lean; "weighted" scores each timeframe by its height rank, so
// a daily lean outvotes an hourly one. Ties are Neutral.
func Combine(policy string, inputs []TimeframeBias) structure.Direction {
	if len(inputs) == 0 {
		return Neutral
	}
	for _, in := range inputs {
		if in.Bias == Neutral {
			return Neutral
		}
	}

	switch policy {
	case "unanimous":
		first := inputs[0].Bias
		for _, in := range inputs[1:] {
			if in.Bias != first {
				return Neutral
			}
		}
		return first

	case "majority":
		var score int
		for _, in := range inputs {
			score += int(in.Bias)
		}
		return sign(score)

	case "weighted":
		ranked := make([]TimeframeBias, len(inputs))
		copy(ranked, inputs)
		sort.SliceStable(ranked, func(i, j int) bool {
			return tfHeight(ranked[i].Timeframe) < tfHeight(ranked[j].Timeframe)
		})
		var score int
		for rank, in := range ranked {
			score += (rank + 1) * int(in.Bias)
		}
		return sign(score)

	default:
		return Neutral
	}
}

func sign(v int) structure.Direction {
	switch {
	case v > 0:
		return structure.Bullish
	case v < 0:
		return structure.Bearish
	default:
		return Neutral
	}
}

func tfHeight(tf series.Timeframe) time.Duration {
	d, err := tf.Duration()
	if err != nil {
		return 0
	}
	return d
}
