package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/common"
	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
	"github.com/sirvig/wheel-analyzer-sub001/internal/marketdata"
	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
	badgerstore "github.com/sirvig/wheel-analyzer-sub001/internal/storage/badger"

	"github.com/sirvig/wheel-analyzer-sub001/internal/services/refresh"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/report"
	"github.com/sirvig/wheel-analyzer-sub001/internal/services/scheduler"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	symbolsFlag  = flag.String("symbols", "", "Comma-separated symbols to refresh (overrides selection)")
	limitFlag    = flag.Int("limit", 0, "Max entities to refresh this run (overrides config)")
	forceAll     = flag.Bool("force-all", false, "Refresh every active entity regardless of limit")
	forceRefresh = flag.Bool("force-refresh", false, "Bypass the response cache")
	clearCache   = flag.Bool("clear-cache", false, "Clear the response cache and exit")
	daemonMode   = flag.Bool("daemon", false, "Run on the configured cron schedule instead of once")
	addSymbol    = flag.String("add", "", "Add a symbol to the curated universe and exit")
	dropSymbol   = flag.String("deactivate", "", "Deactivate a curated symbol and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Valuator %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> files -> env)
	// 2. Initialize logger
	// 3. Print banner
	// 4. Open storage and wire services

	if len(configFiles) == 0 {
		if _, err := os.Stat("valuator.toml"); err == nil {
			configFiles = append(configFiles, "valuator.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		// Config failed before InitLogger; fall back to the default logger.
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration is invalid")
		os.Exit(1)
	}

	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
		os.Exit(1)
	}
	defer db.Close()

	entityStorage := badgerstore.NewEntityStorage(db, logger)
	cacheStorage := badgerstore.NewCacheStorage(db, logger)
	runStateStorage := badgerstore.NewRunStateStorage(db, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Maintenance flags run and exit before any provider wiring.
	if *addSymbol != "" {
		if err := addEntity(ctx, entityStorage, *addSymbol, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to add symbol")
			os.Exit(1)
		}
		return
	}
	if *dropSymbol != "" {
		if err := deactivateEntity(ctx, entityStorage, *dropSymbol, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to deactivate symbol")
			os.Exit(1)
		}
		return
	}
	if *clearCache {
		count, err := cacheStorage.Clear(ctx, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to clear cache")
			os.Exit(1)
		}
		logger.Info().Int("entries", count).Msg("Response cache cleared")
		return
	}

	clientOpts := []marketdata.ClientOption{
		marketdata.WithLogger(logger),
		marketdata.WithRateLimit(config.Provider.RequestsPerMinute),
	}
	if config.Provider.BaseURL != "" {
		clientOpts = append(clientOpts, marketdata.WithBaseURL(config.Provider.BaseURL))
	}
	client := marketdata.NewClient(config.Provider.APIKey, clientOpts...)

	selector := scheduler.NewService(entityStorage, &config.Provider, logger)
	reporter := report.NewService(logger)

	orchestrator, err := refresh.NewOrchestrator(
		entityStorage, runStateStorage, selector, client, cacheStorage, reporter, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build refresh orchestrator")
		os.Exit(1)
	}

	opts := refresh.Options{
		Symbols:      splitSymbols(*symbolsFlag),
		Limit:        *limitFlag,
		ForceAll:     *forceAll,
		ForceRefresh: *forceRefresh,
	}

	if *daemonMode {
		runDaemon(ctx, orchestrator, config, opts, logger)
		return
	}

	summary, err := orchestrator.Run(ctx, opts)
	if summary != nil {
		// The summary is always printed, whatever the run produced.
		fmt.Print(reporter.Render(summary))
	}
	if err != nil && summary == nil {
		// Run-fatal: the entity list or record store was unreachable.
		logger.Error().Err(err).Msg("Refresh run failed")
		os.Exit(1)
	}
}

// runDaemon blocks on the cron schedule until interrupted.
func runDaemon(ctx context.Context, orchestrator *refresh.Orchestrator, config *common.Config, opts refresh.Options, logger arbor.ILogger) {
	sched := refresh.NewScheduler(orchestrator, logger)
	if err := sched.Start(config.Refresh.Schedule, opts); err != nil {
		logger.Fatal().Err(err).Str("schedule", config.Refresh.Schedule).Msg("Failed to start refresh scheduler")
		os.Exit(1)
	}
	defer sched.Stop()

	logger.Info().Msg("Daemon mode active, waiting for scheduled runs (Ctrl+C to stop)")
	<-ctx.Done()
}

func addEntity(ctx context.Context, storage interfaces.EntityStorage, symbol string, logger arbor.ILogger) error {
	entity := models.NewCuratedEntity(symbol)
	if err := storage.Save(ctx, entity); err != nil {
		return err
	}
	logger.Info().Str("symbol", entity.Symbol).Msg("Symbol added to curated universe")
	return nil
}

func deactivateEntity(ctx context.Context, storage interfaces.EntityStorage, symbol string, logger arbor.ILogger) error {
	entity, err := storage.Get(ctx, symbol)
	if err != nil {
		return err
	}
	entity.Active = false
	if err := storage.Save(ctx, entity); err != nil {
		return err
	}
	logger.Info().Str("symbol", entity.Symbol).Msg("Symbol deactivated")
	return nil
}

func splitSymbols(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	return strings.Split(list, ",")
}
