package structure

import (
	"math"

	"github.com/marvelous3500/bot-sub000/internal/series"
)

// Displacements marks bars whose body exceeds ratio times the average body
// of the preceding window bars. The result is per-bar: the bar's own color
// when displaced, None otherwise. Bars without a full preceding window are
// never displaced.
func Displacements(s *series.Series, ratio float64, window int) []Direction {
	n := s.Len()
	out := make([]Direction, n)
	if window <= 0 {
		return out
	}
	var sum float64
	for i := 0; i < n; i++ {
		if i >= window {
			avg := sum / float64(window)
			body := s.At(i).Body()
			if avg > 0 && body > avg*ratio {
				switch {
				case s.Close(i) > s.Open(i):
					out[i] = Bullish
				case s.Close(i) < s.Open(i):
					out[i] = Bearish
				}
			}
			sum -= s.At(i - window).Body()
		}
		sum += s.At(i).Body()
	}
	return out
}

// RejectionCandles marks pin bars: a long lower wick on an up close rejects
// lower prices (bullish), a long upper wick on a down close rejects higher
// prices (bearish). wickRatio is the minimum wick share of the full range.
func RejectionCandles(s *series.Series, wickRatio float64) []Direction {
	n := s.Len()
	out := make([]Direction, n)
	for i := 0; i < n; i++ {
		b := s.At(i)
		rng := b.Range()
		if rng <= 0 {
			continue
		}
		switch {
		case b.Bullish() && b.LowerWick()/rng >= wickRatio:
			out[i] = Bullish
		case b.Bearish() && b.UpperWick()/rng >= wickRatio:
			out[i] = Bearish
		}
	}
	return out
}

// ATR computes the average true range as a simple rolling mean over period
// bars. Warm-up bars hold NaN; callers gate on math.IsNaN before use.
func ATR(s *series.Series, period int) []float64 {
	n := s.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || n == 0 {
		return out
	}
	tr := make([]float64, n)
	tr[0] = s.High(0) - s.Low(0)
	for i := 1; i < n; i++ {
		hl := s.High(i) - s.Low(i)
		hc := math.Abs(s.High(i) - s.Close(i-1))
		lc := math.Abs(s.Low(i) - s.Close(i-1))
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// Equilibrium returns the midpoint of the highest high and lowest low over
// the lookback bars ending at endIndex inclusive. Prices above the midpoint
// are premium, below are discount. ok is false when no bars are in range.
func Equilibrium(s *series.Series, lookback, endIndex int) (float64, bool) {
	if endIndex < 0 || endIndex >= s.Len() || lookback <= 0 {
		return 0, false
	}
	start := endIndex - lookback + 1
	if start < 0 {
		start = 0
	}
	hi := s.High(start)
	lo := s.Low(start)
	for i := start + 1; i <= endIndex; i++ {
		if s.High(i) > hi {
			hi = s.High(i)
		}
		if s.Low(i) < lo {
			lo = s.Low(i)
		}
	}
	return (hi + lo) / 2, true
}
