// Package risk gates signal flow. The gate never edits a signal: it either
// lets it pass or rejects it with a reason string.
package risk

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/signal"
)

// Rejection reasons returned by Allow. Stable strings, keyed on by callers
// and log consumers.
const (
	ReasonStopSide       = "stop_on_wrong_side"
	ReasonSpread         = "spread_too_wide"
	ReasonDailyTradeCap  = "daily_trade_cap"
	ReasonSessionCap     = "session_trade_cap"
	ReasonDailyLossLimit = "daily_loss_limit"
)

// Gate enforces per-day and per-session limits over a stream of signals.
// Counters reset when a signal arrives on a new UTC day. Not safe for
// concurrent use; the engine owns one gate per strategy instance.
type Gate struct {
	cfg       config.RiskConfig
	sessionOf func(hour int) string
	logger    zerolog.Logger

	day           string
	tradesToday   int
	tradesSession map[string]int
	dayPnL        float64
}

func NewGate(cfg config.RiskConfig, sessionOf func(hour int) string, logger zerolog.Logger) *Gate {
	if sessionOf == nil {
		sessionOf = func(int) string { return "" }
	}
	return &Gate{
		cfg:           cfg,
		sessionOf:     sessionOf,
		logger:        logger.With().Str("component", "risk").Logger(),
		tradesSession: make(map[string]int),
	}
}

// Allow decides whether a signal may become a trade. spread is the live
// spread in price units at decision time.
func (g *Gate) Allow(sig *signal.Signal, spread float64) (bool, string) {
	g.roll(sig.Time)

	if sig.Risk() <= 0 {
		return g.reject(sig, ReasonStopSide)
	}
	if g.cfg.MaxSpreadPoints > 0 && spread > g.cfg.MaxSpreadPoints {
		return g.reject(sig, ReasonSpread)
	}
	if g.cfg.MaxTradesPerDay > 0 && g.tradesToday >= g.cfg.MaxTradesPerDay {
		return g.reject(sig, ReasonDailyTradeCap)
	}
	if g.cfg.MaxTradesPerSession > 0 {
		session := g.sessionOf(sig.Time.UTC().Hour())
		if session != "" && g.tradesSession[session] >= g.cfg.MaxTradesPerSession {
			return g.reject(sig, ReasonSessionCap)
		}
	}
	if g.cfg.DailyLossLimitPct > 0 {
		limit := g.cfg.InitialBalance * g.cfg.DailyLossLimitPct / 100
		if g.dayPnL <= -limit {
			return g.reject(sig, ReasonDailyLossLimit)
		}
	}
	return true, ""
}

// RecordTrade counts an accepted signal against the day and session caps.
func (g *Gate) RecordTrade(t time.Time) {
	g.roll(t)
	g.tradesToday++
	if session := g.sessionOf(t.UTC().Hour()); session != "" {
		g.tradesSession[session]++
	}
}

// RecordPnL books a realized result against the daily loss limit. The
// timestamp is the trade's exit time.
func (g *Gate) RecordPnL(t time.Time, pnl float64) {
	g.roll(t)
	g.dayPnL += pnl
}

func (g *Gate) roll(t time.Time) {
	day := t.UTC().Format("2006-01-02")
	if day == g.day {
		return
	}
	if g.day != "" {
		g.logger.Debug().Str("day", day).Msg("risk counters reset")
	}
	g.day = day
	g.tradesToday = 0
	g.tradesSession = make(map[string]int)
	g.dayPnL = 0
}

func (g *Gate) reject(sig *signal.Signal, reason string) (bool, string) {
	g.logger.Warn().
		Str("signal_id", sig.ID).
		Str("reason", reason).
		Msg("signal rejected")
	return false, reason
}
