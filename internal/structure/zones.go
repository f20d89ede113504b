package structure

import "github.com/marvelous3500/bot-sub000/internal/series"

// ZoneKind labels what a price zone represents.
type ZoneKind int

const (
	OrderBlock ZoneKind = iota
	FairValueGap
)

func (k ZoneKind) String() string {
	if k == FairValueGap {
		return "fvg"
	}
	return "order_block"
}

// Zone is a horizontal price band anchored at a bar. Top >= Bottom always;
// detectors return nil instead of an inverted zone.
type Zone struct {
	Top       float64
	Bottom    float64
	Kind      ZoneKind
	Direction Direction
	Index     int
}

// Midpoint is the zone's equilibrium price.
func (z Zone) Midpoint() float64 { return (z.Top + z.Bottom) / 2 }

// Height is the zone's vertical extent.
func (z Zone) Height() float64 { return z.Top - z.Bottom }

// Contains reports whether price falls inside the band, edges inclusive.
func (z Zone) Contains(price float64) bool { return price >= z.Bottom && price <= z.Top }

// Overlaps reports whether the bar range [low, high] touches the band.
func (z Zone) Overlaps(low, high float64) bool { return high >= z.Bottom && low <= z.Top }

// DetectFVGs finds three-bar imbalances. A bullish gap exists at bar i when
// low[i] > high[i-2]: the middle bar's move left a void between the outer
// bars. The zone spans the void itself, anchored at the third bar.
func DetectFVGs(s *series.Series) []Zone {
	var out []Zone
	for i := 2; i < s.Len(); i++ {
		if s.Low(i) > s.High(i-2) {
			out = append(out, Zone{
				Top:       s.Low(i),
				Bottom:    s.High(i - 2),
				Kind:      FairValueGap,
				Direction: Bullish,
				Index:     i,
			})
		}
		if s.High(i) < s.Low(i-2) {
			out = append(out, Zone{
				Top:       s.Low(i - 2),
				Bottom:    s.High(i),
				Kind:      FairValueGap,
				Direction: Bearish,
				Index:     i,
			})
		}
	}
	return out
}

// FindOrderBlock scans backward from the bar before eventIndex for the last
// candle colored against dir: the final down candle before a bullish break,
// or the final up candle before a bearish one. The zone spans the candle
// body when useBody is set, the full range otherwise.
//
// With requireBreaker set the candidate must additionally have had its
// defining extreme pierced by a later bar before the event; an untested
// block is rejected rather than returned.
func FindOrderBlock(s *series.Series, eventIndex int, dir Direction, lookback int, useBody, requireBreaker bool) *Zone {
	if dir == None {
		return nil
	}
	start := eventIndex - 1
	stop := eventIndex - lookback
	if stop < 0 {
		stop = 0
	}
	for i := start; i >= stop; i-- {
		open, close_ := s.Open(i), s.Close(i)
		if dir == Bullish && close_ >= open {
			continue
		}
		if dir == Bearish && close_ <= open {
			continue
		}

		if requireBreaker && !pierced(s, i, eventIndex, dir) {
			return nil
		}

		z := &Zone{Kind: OrderBlock, Direction: dir, Index: i}
		if useBody {
			if open >= close_ {
				z.Top, z.Bottom = open, close_
			} else {
				z.Top, z.Bottom = close_, open
			}
		} else {
			z.Top, z.Bottom = s.High(i), s.Low(i)
		}
		return z
	}
	return nil
}

// pierced reports whether price traded through the block's defining extreme
// between the block bar and the event bar, exclusive on both ends.
func pierced(s *series.Series, obIndex, eventIndex int, dir Direction) bool {
	for j := obIndex + 1; j < eventIndex; j++ {
		if dir == Bullish && s.Low(j) < s.Low(obIndex) {
			return true
		}
		if dir == Bearish && s.High(j) > s.High(obIndex) {
			return true
		}
	}
	return false
}
