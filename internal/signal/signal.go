// Package signal turns a confirmed episode and entry trigger into a
// tradeable signal: direction, entry, protective stop and target.
package signal

import (
	"time"

	"github.com/google/uuid"

	"github.com/marvelous3500/bot-sub000/internal/structure"
)

// Direction of a signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// FromStructure maps a structural direction to a trade side.
func FromStructure(d structure.Direction) Direction {
	if d == structure.Bearish {
		return Sell
	}
	return Buy
}

// Signal is a fully specified trade instruction. Entry is the triggering
// bar's close; Stop and Target are absolute prices on the correct side of
// the entry. Trace records the confirmation path for audit.
type Signal struct {
	ID         string    `json:"id"`
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Time       time.Time `json:"time"`
	BarIndex   int       `json:"bar_index"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	RiskReward float64   `json:"risk_reward"`
	Reason     string    `json:"reason"`
	Trace      []string  `json:"trace"`
}

// NewID returns a fresh signal identifier.
func NewID() string { return uuid.NewString() }

// Risk is the stop distance in price units.
func (s *Signal) Risk() float64 {
	if s.Direction == Buy {
		return s.Entry - s.Stop
	}
	return s.Stop - s.Entry
}

// Reward is the target distance in price units.
func (s *Signal) Reward() float64 {
	if s.Direction == Buy {
		return s.Target - s.Entry
	}
	return s.Entry - s.Target
}
