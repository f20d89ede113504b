package structure

import "github.com/marvelous3500/bot-sub000/internal/series"

// Direction of a structural fact. Bullish and Bearish are the only active
// values; None means no fact at that bar.
type Direction int

const (
	None    Direction = 0
	Bullish Direction = 1
	Bearish Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "none"
	}
}

// Opposite returns the inverted direction.
func (d Direction) Opposite() Direction { return -d }

// Event is a break of structure: a close beyond the most recently tracked
// swing level. Kind records whether the break continued the prior direction
// (BOS) or reversed it (CHoCH); the detection rule is identical for both.
type Event struct {
	Index       int
	Direction   Direction
	BrokenLevel float64
	Kind        EventKind
}

// EventKind separates continuation breaks from reversal breaks.
type EventKind int

const (
	BOS EventKind = iota
	CHoCH
)

func (k EventKind) String() string {
	if k == CHoCH {
		return "choch"
	}
	return "bos"
}

// DetectEvents walks the series once, tracking the last confirmed swing high
// and low. At each bar it first absorbs swings confirmed at that bar, then
// tests the close against the tracked levels. On a break the tracked level
// advances to the breaking bar's own extreme, so the same level cannot break
// twice and each event needs a fresh excursion.
func DetectEvents(s *series.Series, swings []SwingPoint) []Event {
	n := s.Len()
	byConfirm := make(map[int][]SwingPoint, len(swings))
	for _, sp := range swings {
		byConfirm[sp.ConfirmedAt] = append(byConfirm[sp.ConfirmedAt], sp)
	}

	var events []Event
	var lastHigh, lastLow float64
	haveHigh, haveLow := false, false
	lastDir := None

	for i := 0; i < n; i++ {
		for _, sp := range byConfirm[i] {
			if sp.Kind == SwingHigh {
				lastHigh = sp.Price
				haveHigh = true
			} else {
				lastLow = sp.Price
				haveLow = true
			}
		}

		close_ := s.Close(i)
		if haveHigh && close_ > lastHigh {
			kind := BOS
			if lastDir == Bearish {
				kind = CHoCH
			}
			events = append(events, Event{Index: i, Direction: Bullish, BrokenLevel: lastHigh, Kind: kind})
			lastHigh = s.High(i)
			lastDir = Bullish
		}
		if haveLow && close_ < lastLow {
			kind := BOS
			if lastDir == Bullish {
				kind = CHoCH
			}
			events = append(events, Event{Index: i, Direction: Bearish, BrokenLevel: lastLow, Kind: kind})
			lastLow = s.Low(i)
			lastDir = Bearish
		}
	}
	return events
}
