// Package series provides the ordered OHLCV bar container every detector
// reads from. Bars are stored column-wise and addressed by integer position;
// timestamp lookup is an explicit binary search, so gaps in the bar clock are
// handled naturally.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrEmpty        = errors.New("series is empty")
	ErrOutOfOrder   = errors.New("bar timestamps must be strictly increasing")
	ErrInvalidRange = errors.New("bar high/low does not contain its open/close")
)

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Body returns the absolute open-close distance.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns the high-low distance.
func (b Bar) Range() float64 { return b.High - b.Low }

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// LowerWick returns the distance from the body bottom to the low.
func (b Bar) LowerWick() float64 {
	if b.Open < b.Close {
		return b.Open - b.Low
	}
	return b.Close - b.Low
}

// UpperWick returns the distance from the high to the body top.
func (b Bar) UpperWick() float64 {
	if b.Open > b.Close {
		return b.High - b.Open
	}
	return b.High - b.Close
}

// Series is an immutable, time-ordered bar sequence for one
// symbol/timeframe. Columns are parallel slices keyed by bar position.
type Series struct {
	times  []time.Time
	open   []float64
	high   []float64
	low    []float64
	close_ []float64
	volume []float64
}

// New validates bars and builds a Series. Timestamps must be strictly
// increasing; each bar's high must contain max(open, close) and its low
// min(open, close). Malformed input is a hard failure for the caller.
func New(bars []Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, ErrEmpty
	}
	s := &Series{
		times:  make([]time.Time, len(bars)),
		open:   make([]float64, len(bars)),
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close_: make([]float64, len(bars)),
		volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: bar %d at %s", ErrOutOfOrder, i, b.Time)
		}
		maxOC := b.Open
		if b.Close > maxOC {
			maxOC = b.Close
		}
		minOC := b.Open
		if b.Close < minOC {
			minOC = b.Close
		}
		if b.High < maxOC || b.Low > minOC {
			return nil, fmt.Errorf("%w: bar %d at %s", ErrInvalidRange, i, b.Time)
		}
		s.times[i] = b.Time
		s.open[i] = b.Open
		s.high[i] = b.High
		s.low[i] = b.Low
		s.close_[i] = b.Close
		s.volume[i] = b.Volume
	}
	return s, nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.times) }

// At returns the bar at position i.
func (s *Series) At(i int) Bar {
	return Bar{
		Time:   s.times[i],
		Open:   s.open[i],
		High:   s.high[i],
		Low:    s.low[i],
		Close:  s.close_[i],
		Volume: s.volume[i],
	}
}

// Time returns the timestamp of bar i.
func (s *Series) Time(i int) time.Time { return s.times[i] }

// Open returns the open of bar i.
func (s *Series) Open(i int) float64 { return s.open[i] }

// High returns the high of bar i.
func (s *Series) High(i int) float64 { return s.high[i] }

// Low returns the low of bar i.
func (s *Series) Low(i int) float64 { return s.low[i] }

// Close returns the close of bar i.
func (s *Series) Close(i int) float64 { return s.close_[i] }

// Volume returns the volume of bar i.
func (s *Series) Volume(i int) float64 { return s.volume[i] }

// IndexAtOrBefore returns the position of the last bar whose timestamp is at
// or before t, or -1 when every bar is later.
func (s *Series) IndexAtOrBefore(t time.Time) int {
	n := sort.Search(len(s.times), func(i int) bool { return s.times[i].After(t) })
	return n - 1
}

// IndexAfter returns the position of the first bar strictly after t, or
// Len() when no such bar exists.
func (s *Series) IndexAfter(t time.Time) int {
	return sort.Search(len(s.times), func(i int) bool { return s.times[i].After(t) })
}

// Prefix returns a view of the first n bars. The underlying columns are
// shared; the result must be treated as read-only like its parent.
func (s *Series) Prefix(n int) *Series {
	if n > s.Len() {
		n = s.Len()
	}
	return &Series{
		times:  s.times[:n],
		open:   s.open[:n],
		high:   s.high[:n],
		low:    s.low[:n],
		close_: s.close_[:n],
		volume: s.volume[:n],
	}
}

// Bars copies the series back out as a bar slice.
func (s *Series) Bars() []Bar {
	out := make([]Bar, s.Len())
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}
