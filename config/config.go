package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the full parameter surface for one strategy instance.
// Every field has a sensible default applied by ApplyDefaults; there is no
// schema validation beyond presence-or-default resolution.
type Config struct {
	Strategy  StrategyConfig  `json:"strategy"`
	Structure StructureConfig `json:"structure"`
	Bias      BiasConfig      `json:"bias"`
	Setup     SetupConfig     `json:"setup"`
	Entry     EntryConfig     `json:"entry"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Risk      RiskConfig      `json:"risk"`
	Logging   LoggingConfig   `json:"logging"`
}

// StrategyConfig identifies the instance and its timeframes.
type StrategyConfig struct {
	ID             string `json:"id"`              // strategy identifier stamped on every signal
	Symbol         string `json:"symbol"`          // instrument, informational
	BiasTimeframe  string `json:"bias_timeframe"`  // primary bias timeframe (e.g. "1h")
	SetupTimeframe string `json:"setup_timeframe"` // mid timeframe the state machine runs on
	EntryTimeframe string `json:"entry_timeframe"` // fine timeframe for the entry trigger
}

// StructureConfig tunes the structure detectors.
type StructureConfig struct {
	SwingMode          string  `json:"swing_mode"`           // "fractal" or "pivot"
	SwingLength        int     `json:"swing_length"`         // window length L on each side
	OrderBlockLookback int     `json:"order_block_lookback"` // bars scanned back from a structure event
	OrderBlockUseBody  bool    `json:"order_block_use_body"` // body range instead of full range
	RequireBreaker     bool    `json:"require_breaker"`      // order block must have been pierced
	DisplacementRatio  float64 `json:"displacement_ratio"`   // body vs rolling average body
	DisplacementWindow int     `json:"displacement_window"`  // rolling average window
	SweepMinSize       float64 `json:"sweep_min_size"`       // minimum sweep excursion in price units, 0 = off
	RejectionWickRatio float64 `json:"rejection_wick_ratio"` // wick/range ratio for rejection candles
	ATRPeriod          int     `json:"atr_period"`
	UsePrevDayLevels   bool    `json:"use_prev_day_levels"` // sweep previous-day high/low in addition to swings
}

// BiasConfig controls per-timeframe bias resolution and combination.
type BiasConfig struct {
	LookbackBars        int      `json:"lookback_bars"`         // event search window per timeframe
	RequireZoneRespect  bool     `json:"require_zone_respect"`  // demand a zone reaction before accepting bias
	ZoneSearchBars      int      `json:"zone_search_bars"`      // backward FVG/OB search window
	ZoneReactionHorizon int      `json:"zone_reaction_horizon"` // forward reaction scan window
	ReactionWickRatio   float64  `json:"reaction_wick_ratio"`
	ReactionBodyRatio   float64  `json:"reaction_body_ratio"`
	CombinationPolicy   string   `json:"combination_policy"` // "unanimous", "majority", "weighted"
	ExtraTimeframes     []string `json:"extra_timeframes"`   // higher timeframes combined with the primary
	UsePremiumDiscount  bool     `json:"use_premium_discount"`
	EquilibriumLookback int      `json:"equilibrium_lookback"`
}

// SetupConfig drives the confirmation state machine.
type SetupConfig struct {
	TimeoutBars     int              `json:"timeout_bars"`      // episode expires after this many setup bars
	TimeoutMinutes  int              `json:"timeout_minutes"`   // wall-clock expiry, 0 = off
	MaxSignals      int              `json:"max_signals"`       // signals one episode may emit
	KillZoneHours   []int            `json:"kill_zone_hours"`   // UTC hours entries are permitted, empty = always
	Sessions        map[string][]int `json:"sessions"`          // session name -> UTC hours, for per-session caps
	AcceptRejection bool             `json:"accept_rejection"`  // a rejection candle may satisfy the displacement guard
}

// EntryConfig tunes the fine-timeframe trigger and signal construction.
type EntryConfig struct {
	SweepLookback    int     `json:"sweep_lookback"`     // micro-structure sweep search window
	StopMethod       string  `json:"stop_method"`        // "zone" or "swing"
	StopBuffer       float64 `json:"stop_buffer"`        // price-unit buffer beyond the zone extreme
	StopATRMult      float64 `json:"stop_atr_mult"`      // ATR buffer for the swing stop method
	MinRiskReward    float64 `json:"min_risk_reward"`    // floor for the target distance in R
	TargetSwingScan  int     `json:"target_swing_scan"`  // confirmed opposing swings considered for the target
	MaxVolatilityATR float64 `json:"max_volatility_atr"` // skip entry bars with range above this ATR multiple, 0 = off
}

// LifecycleConfig controls trade replay after a signal.
type LifecycleConfig struct {
	LockInEnabled     bool    `json:"lock_in_enabled"`
	LockInTriggerR    float64 `json:"lock_in_trigger_r"` // favorable excursion that arms the lock
	LockInTargetR     float64 `json:"lock_in_target_r"`  // where the stop moves once armed
	TrailingEnabled   bool    `json:"trailing_enabled"`
	TrailActivationR  float64 `json:"trail_activation_r"`
	TrailDistanceR    float64 `json:"trail_distance_r"` // stop trails this many R behind the favorable extreme
	SpreadPoints      float64 `json:"spread_points"`    // full spread in price units
	SlippagePoints    float64 `json:"slippage_points"`  // applied to the stop in the adverse direction
	CommissionPerUnit float64 `json:"commission_per_unit"`
	SizingMode        string  `json:"sizing_mode"`     // "percent" or "fixed"
	RiskPercent       float64 `json:"risk_percent"`    // fraction of balance risked per trade
	FixedSize         float64 `json:"fixed_size"`      // units for the fixed sizing mode
	PerPointValue     float64 `json:"per_point_value"` // monetary value of one price unit per unit size
}

// RiskConfig bounds signal flow per session and day.
type RiskConfig struct {
	MaxTradesPerDay     int     `json:"max_trades_per_day"`
	MaxTradesPerSession int     `json:"max_trades_per_session"` // 0 = no session cap
	DailyLossLimitPct   float64 `json:"daily_loss_limit_pct"`   // percent of starting balance, 0 = off
	MaxSpreadPoints     float64 `json:"max_spread_points"`      // reject signals when spread exceeds this, 0 = off
	InitialBalance      float64 `json:"initial_balance"`
}

// LoggingConfig mirrors the runner's zerolog setup.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Output string `json:"output"` // "stdout", "stderr"
}

// Default returns a Config with every parameter at its default.
func Default() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Called once at
// construction; components receive the resolved config and never consult
// globals.
func (c *Config) ApplyDefaults() {
	if c.Strategy.ID == "" {
		c.Strategy.ID = "smc-engine"
	}
	if c.Strategy.BiasTimeframe == "" {
		c.Strategy.BiasTimeframe = "1h"
	}
	if c.Strategy.SetupTimeframe == "" {
		c.Strategy.SetupTimeframe = "15m"
	}
	if c.Strategy.EntryTimeframe == "" {
		c.Strategy.EntryTimeframe = "5m"
	}

	if c.Structure.SwingMode == "" {
		c.Structure.SwingMode = "fractal"
	}
	if c.Structure.SwingLength <= 0 {
		c.Structure.SwingLength = 3
	}
	if c.Structure.OrderBlockLookback <= 0 {
		c.Structure.OrderBlockLookback = 20
	}
	if c.Structure.DisplacementRatio <= 0 {
		c.Structure.DisplacementRatio = 1.5
	}
	if c.Structure.DisplacementWindow <= 0 {
		c.Structure.DisplacementWindow = 20
	}
	if c.Structure.RejectionWickRatio <= 0 {
		c.Structure.RejectionWickRatio = 0.55
	}
	if c.Structure.ATRPeriod <= 0 {
		c.Structure.ATRPeriod = 14
	}

	if c.Bias.LookbackBars <= 0 {
		c.Bias.LookbackBars = 48
	}
	if c.Bias.ZoneSearchBars <= 0 {
		c.Bias.ZoneSearchBars = 30
	}
	if c.Bias.ZoneReactionHorizon <= 0 {
		c.Bias.ZoneReactionHorizon = 20
	}
	if c.Bias.ReactionWickRatio <= 0 {
		c.Bias.ReactionWickRatio = 0.5
	}
	if c.Bias.ReactionBodyRatio <= 0 {
		c.Bias.ReactionBodyRatio = 0.3
	}
	if c.Bias.CombinationPolicy == "" {
		c.Bias.CombinationPolicy = "unanimous"
	}
	if c.Bias.EquilibriumLookback <= 0 {
		c.Bias.EquilibriumLookback = 24
	}

	if c.Setup.TimeoutBars <= 0 {
		c.Setup.TimeoutBars = 32
	}
	if c.Setup.MaxSignals <= 0 {
		c.Setup.MaxSignals = 1
	}
	if c.Setup.Sessions == nil {
		c.Setup.Sessions = map[string][]int{
			"london": {7, 8, 9, 10},
			"ny":     {13, 14, 15, 16},
			"asian":  {0, 1, 2, 3, 4},
		}
	}

	if c.Entry.SweepLookback <= 0 {
		c.Entry.SweepLookback = 5
	}
	if c.Entry.StopMethod == "" {
		c.Entry.StopMethod = "zone"
	}
	if c.Entry.StopATRMult <= 0 {
		c.Entry.StopATRMult = 0.5
	}
	if c.Entry.MinRiskReward <= 0 {
		c.Entry.MinRiskReward = 2.0
	}
	if c.Entry.TargetSwingScan <= 0 {
		c.Entry.TargetSwingScan = 3
	}

	if c.Lifecycle.LockInTriggerR <= 0 {
		c.Lifecycle.LockInTriggerR = 3.3
	}
	if c.Lifecycle.LockInTargetR <= 0 {
		c.Lifecycle.LockInTargetR = 3.0
	}
	if c.Lifecycle.TrailActivationR <= 0 {
		c.Lifecycle.TrailActivationR = 2.0
	}
	if c.Lifecycle.TrailDistanceR <= 0 {
		c.Lifecycle.TrailDistanceR = 1.0
	}
	if c.Lifecycle.SizingMode == "" {
		c.Lifecycle.SizingMode = "percent"
	}
	if c.Lifecycle.RiskPercent <= 0 {
		c.Lifecycle.RiskPercent = 0.01
	}
	if c.Lifecycle.FixedSize <= 0 {
		c.Lifecycle.FixedSize = 1.0
	}
	if c.Lifecycle.PerPointValue <= 0 {
		c.Lifecycle.PerPointValue = 1.0
	}

	if c.Risk.MaxTradesPerDay <= 0 {
		c.Risk.MaxTradesPerDay = 6
	}
	if c.Risk.InitialBalance <= 0 {
		c.Risk.InitialBalance = 10000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// SessionForHour returns the configured session name for a UTC hour, or ""
// when the hour belongs to no session.
func (c *Config) SessionForHour(hour int) string {
	for name, hours := range c.Setup.Sessions {
		for _, h := range hours {
			if h == hour {
				return name
			}
		}
	}
	return ""
}

// InKillZone reports whether entries are permitted at the given UTC hour.
// An empty kill-zone list permits every hour.
func (c *Config) InKillZone(hour int) bool {
	if len(c.Setup.KillZoneHours) == 0 {
		return true
	}
	for _, h := range c.Setup.KillZoneHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
