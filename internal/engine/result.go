package engine

import (
	"math"

	"github.com/marvelous3500/bot-sub000/internal/lifecycle"
	"github.com/marvelous3500/bot-sub000/internal/signal"
)

// RejectedSignal pairs a built signal with the gate's reason.
type RejectedSignal struct {
	Signal *signal.Signal
	Reason string
}

// Result summarizes one engine run. The aggregate metrics are derived from
// Trades and EquityCurve by finalize.
type Result struct {
	Signals  []*signal.Signal
	Rejected []RejectedSignal
	Trades   []*lifecycle.Trade

	InitialBalance float64
	FinalBalance   float64
	EquityCurve    []float64

	TotalTrades  int
	Wins         int
	Losses       int
	OpenTrades   int
	WinRate      float64
	ProfitFactor float64
	TotalReturn  float64
	MaxDrawdown  float64
	AverageR     float64
}

// finalize derives the aggregate metrics.
func (r *Result) finalize() {
	r.TotalTrades = len(r.Trades)

	var grossProfit, grossLoss, sumR float64
	for _, tr := range r.Trades {
		switch tr.Outcome {
		case lifecycle.Win:
			r.Wins++
		case lifecycle.Loss:
			r.Losses++
		default:
			r.OpenTrades++
		}
		if tr.PnL >= 0 {
			grossProfit += tr.PnL
		} else {
			grossLoss += -tr.PnL
		}
		sumR += tr.RMultiple
	}

	closed := r.Wins + r.Losses
	if closed > 0 {
		r.WinRate = float64(r.Wins) / float64(closed) * 100
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}
	if r.TotalTrades > 0 {
		r.AverageR = sumR / float64(r.TotalTrades)
	}
	if r.InitialBalance > 0 {
		r.TotalReturn = (r.FinalBalance - r.InitialBalance) / r.InitialBalance * 100
	}

	peak := math.Inf(-1)
	for _, eq := range r.EquityCurve {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if dd := (peak - eq) / peak * 100; dd > r.MaxDrawdown {
				r.MaxDrawdown = dd
			}
		}
	}
}
