package structure

import "github.com/marvelous3500/bot-sub000/internal/series"

// Sweep is a liquidity grab: a wick trades beyond the most recent tracked
// swing level but the bar closes back on the original side. Direction is the
// implied reversal, so taking out a swing high is a Bearish sweep.
type Sweep struct {
	Index     int
	Direction Direction
	Level     float64
}

// DetectSweeps tracks the last confirmed swing high and low and tests each
// bar for an excursion-and-reclaim beyond them. minSize filters noise: the
// excursion past the level must be at least that many price units (zero
// disables the filter). Swings confirmed at a bar are absorbed before that
// bar is tested, matching event detection.
func DetectSweeps(s *series.Series, swings []SwingPoint, minSize float64) []Sweep {
	byConfirm := make(map[int][]SwingPoint, len(swings))
	for _, sp := range swings {
		byConfirm[sp.ConfirmedAt] = append(byConfirm[sp.ConfirmedAt], sp)
	}

	var out []Sweep
	var lastHigh, lastLow float64
	haveHigh, haveLow := false, false

	for i := 0; i < s.Len(); i++ {
		for _, sp := range byConfirm[i] {
			if sp.Kind == SwingHigh {
				lastHigh = sp.Price
				haveHigh = true
			} else {
				lastLow = sp.Price
				haveLow = true
			}
		}

		if haveHigh && s.High(i) > lastHigh && s.Close(i) < lastHigh {
			if s.High(i)-lastHigh >= minSize {
				out = append(out, Sweep{Index: i, Direction: Bearish, Level: lastHigh})
			}
		}
		if haveLow && s.Low(i) < lastLow && s.Close(i) > lastLow {
			if lastLow-s.Low(i) >= minSize {
				out = append(out, Sweep{Index: i, Direction: Bullish, Level: lastLow})
			}
		}
	}
	return out
}

// LiquidityLevel is an externally supplied resting level, such as the
// previous day's high or low. It becomes active at FromIndex and stays the
// tracked level of its kind until a later level replaces it. Kind follows
// swing semantics: a SwingHigh level sits above price and sweeping it is
// Bearish.
type LiquidityLevel struct {
	FromIndex int
	Price     float64
	Kind      SwingKind
}

// DetectLevelSweeps applies the excursion-and-reclaim test to supplied
// liquidity levels instead of tracked swings. Levels must be ordered by
// FromIndex; a level activating at bar i is tested from that bar on.
func DetectLevelSweeps(s *series.Series, levels []LiquidityLevel, minSize float64) []Sweep {
	var out []Sweep
	var high, low float64
	haveHigh, haveLow := false, false
	next := 0

	for i := 0; i < s.Len(); i++ {
		for next < len(levels) && levels[next].FromIndex <= i {
			lv := levels[next]
			if lv.Kind == SwingHigh {
				high = lv.Price
				haveHigh = true
			} else {
				low = lv.Price
				haveLow = true
			}
			next++
		}

		if haveHigh && s.High(i) > high && s.Close(i) < high {
			if s.High(i)-high >= minSize {
				out = append(out, Sweep{Index: i, Direction: Bearish, Level: high})
			}
		}
		if haveLow && s.Low(i) < low && s.Close(i) > low {
			if low-s.Low(i) >= minSize {
				out = append(out, Sweep{Index: i, Direction: Bullish, Level: low})
			}
		}
	}
	return out
}
