// Package structure derives per-bar price-structure facts from a bar series:
// swing points, break-of-structure events, order blocks, fair value gaps,
// displacement, liquidity sweeps and candle-shape signals. Every fact carries
// the bar position it became known at, and never depends on later bars.
package structure

import (
	"fmt"

	"github.com/marvelous3500/bot-sub000/internal/series"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

func (k SwingKind) String() string {
	if k == SwingHigh {
		return "high"
	}
	return "low"
}

// SwingPoint marks a local extreme. Index is the bar the extreme sits on;
// ConfirmedAt is the bar at which the right-side window completes and the
// swing becomes known. Consumers must not act on a swing before ConfirmedAt,
// otherwise truncating the series would change history.
type SwingPoint struct {
	Index       int
	ConfirmedAt int
	Price       float64
	Kind        SwingKind
}

// SwingDetector finds swing points in a series. Implementations differ in
// window shape but share output: swings ordered by Index with monotonically
// non-decreasing ConfirmedAt.
type SwingDetector interface {
	Name() string
	Detect(s *series.Series) []SwingPoint
}

// NewSwingDetector selects the swing implementation by mode name.
func NewSwingDetector(mode string, length int) (SwingDetector, error) {
	switch mode {
	case "fractal":
		return &FractalSwings{Length: length}, nil
	case "pivot":
		return &PivotSwings{Left: length}, nil
	default:
		return nil, fmt.Errorf("unknown swing mode %q", mode)
	}
}

// FractalSwings detects swings with a symmetric window: bar i is a swing
// high when its high strictly exceeds every high within Length bars on both
// sides. A swing at i is confirmed at i+Length.
type FractalSwings struct {
	Length int
}

func (f *FractalSwings) Name() string { return "fractal" }

func (f *FractalSwings) Detect(s *series.Series) []SwingPoint {
	L := f.Length
	n := s.Len()
	var out []SwingPoint
	for i := L; i < n-L; i++ {
		high := s.High(i)
		low := s.Low(i)
		isHigh, isLow := true, true
		for j := 1; j <= L; j++ {
			if s.High(i-j) >= high || s.High(i+j) >= high {
				isHigh = false
			}
			if s.Low(i-j) <= low || s.Low(i+j) <= low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			out = append(out, SwingPoint{Index: i, ConfirmedAt: i + L, Price: high, Kind: SwingHigh})
		}
		if isLow {
			out = append(out, SwingPoint{Index: i, ConfirmedAt: i + L, Price: low, Kind: SwingLow})
		}
	}
	return out
}

// PivotSwings detects swings with an asymmetric window: Left bars on the
// left, one bar on the right, ties allowed. The single right-side bar gives
// it one bar of confirmation lag instead of Length.
type PivotSwings struct {
	Left int
}

const pivotRight = 1

func (p *PivotSwings) Name() string { return "pivot" }

func (p *PivotSwings) Detect(s *series.Series) []SwingPoint {
	n := s.Len()
	var out []SwingPoint
	for i := p.Left; i < n-pivotRight; i++ {
		high := s.High(i)
		low := s.Low(i)
		isHigh, isLow := true, true
		for j := i - p.Left; j <= i+pivotRight; j++ {
			if j == i {
				continue
			}
			if s.High(j) > high {
				isHigh = false
			}
			if s.Low(j) < low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			out = append(out, SwingPoint{Index: i, ConfirmedAt: i + pivotRight, Price: high, Kind: SwingHigh})
		}
		if isLow {
			out = append(out, SwingPoint{Index: i, ConfirmedAt: i + pivotRight, Price: low, Kind: SwingLow})
		}
	}
	return out
}
