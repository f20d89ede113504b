// Command smcbt replays a smart-money strategy over historical bars and
// prints the resulting signals and trade statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marvelous3500/bot-sub000/config"
	"github.com/marvelous3500/bot-sub000/internal/engine"
	"github.com/marvelous3500/bot-sub000/internal/events"
	"github.com/marvelous3500/bot-sub000/internal/logging"
	"github.com/marvelous3500/bot-sub000/internal/series"
	"github.com/marvelous3500/bot-sub000/internal/setup"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config (defaults apply when empty)")
		dataPath   = flag.String("data", "", "CSV file of entry-timeframe bars (time,open,high,low,close,volume)")
		verbose    = flag.Bool("v", false, "log state machine transitions")
	)
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = *loaded
	}

	logger := logging.New(cfg.Logging)

	bars, err := series.LoadCSV(*dataPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *dataPath).Msg("failed to load bars")
	}
	logger.Info().
		Int("bars", bars.Len()).
		Str("symbol", cfg.Strategy.Symbol).
		Str("entry_tf", cfg.Strategy.EntryTimeframe).
		Msg("data loaded")

	var diag setup.Diagnostics
	if *verbose {
		diag = setup.NewLogDiagnostics(logger)
	}

	eng, err := engine.New(&cfg, diag, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	bus := events.NewBus()
	bus.SubscribeAll(func(ev events.Event) {
		logger.Debug().Str("event", string(ev.Type)).Msg("event")
	})
	eng.AttachBus(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := eng.Run(ctx, bars)
	if err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}

	for _, sig := range res.Signals {
		logger.Info().
			Str("id", sig.ID).
			Str("direction", string(sig.Direction)).
			Float64("entry", sig.Entry).
			Float64("stop", sig.Stop).
			Float64("target", sig.Target).
			Float64("rr", sig.RiskReward).
			Strs("trace", sig.Trace).
			Msg("signal")
	}
	for _, rej := range res.Rejected {
		logger.Warn().Str("id", rej.Signal.ID).Str("reason", rej.Reason).Msg("rejected")
	}

	fmt.Printf("\nTrades:        %d (%d wins, %d losses, %d open)\n",
		res.TotalTrades, res.Wins, res.Losses, res.OpenTrades)
	fmt.Printf("Win rate:      %.1f%%\n", res.WinRate)
	fmt.Printf("Profit factor: %.2f\n", res.ProfitFactor)
	fmt.Printf("Average R:     %.2f\n", res.AverageR)
	fmt.Printf("Max drawdown:  %.2f%%\n", res.MaxDrawdown)
	fmt.Printf("Balance:       %.2f -> %.2f (%.2f%%)\n",
		res.InitialBalance, res.FinalBalance, res.TotalReturn)
}
