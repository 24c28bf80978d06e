package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cypherlabdev/kalshi-best-bets/internal/config"
	"github.com/cypherlabdev/kalshi-best-bets/internal/exchange"
	"github.com/cypherlabdev/kalshi-best-bets/internal/forecast"
	"github.com/cypherlabdev/kalshi-best-bets/internal/messaging"
	"github.com/cypherlabdev/kalshi-best-bets/internal/metrics"
	"github.com/cypherlabdev/kalshi-best-bets/internal/output"
	"github.com/cypherlabdev/kalshi-best-bets/internal/service"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/ev"
	"github.com/cypherlabdev/kalshi-best-bets/pkg/matcher"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("bestbets", pflag.ContinueOnError)
	dateFlag := flags.String("date", time.Now().Format(service.DateLayout), "run date (YYYY-MM-DD)")
	dryRun := flags.Bool("dry-run", false, "print the table only, write and publish nothing")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	configPath := flags.String("config", "", "config file")
	envFile := flags.String("env-file", ".env", "dotenv file with secrets")
	flags.Float64("min-ev", 0.02, "minimum EV per dollar to report")
	flags.Float64("share-factor", 0.5, "payout fraction for a shared conference title")
	flags.Int("top", 20, "number of bets to report, 0 for all")
	flags.Bool("screenshots", false, "capture failing forecast pages")
	flags.String("out-dir", "out", "output directory")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Exchange API keys may live in .env
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Msg("failed to load env file")
		return 1
	}

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}
	if *verbose && !flags.Changed("log-level") {
		cfg.Logging.Level = "debug"
	}

	date, err := time.Parse(service.DateLayout, *dateFlag)
	if err != nil {
		log.Error().Err(err).Str("date", *dateFlag).Msg("invalid --date, expected YYYY-MM-DD")
		return 1
	}
	day := date.Format(service.DateLayout)

	writer := output.NewWriter(output.WriterConfig{Dir: cfg.Output.Dir}, zerolog.Nop())

	// Execution log next to the report files
	var logFile io.Writer
	if !*dryRun {
		dir, err := writer.Prepare(day)
		if err != nil {
			log.Error().Err(err).Msg("failed to prepare output")
			return 1
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(dir, output.LogFile),
			MaxSize:    10, // MB
			MaxBackups: 3,
		}
		defer lj.Close()
		logFile = lj
	}

	// Setup logger
	logger := setupLogger(cfg.Logging, logFile)
	logger.Info().
		Str("date", day).
		Bool("dry_run", *dryRun).
		Float64("min_ev", cfg.EV.MinEV).
		Float64("share_factor", cfg.EV.ShareFactor).
		Int("top", cfg.EV.TopN).
		Msg("starting best-bets run")

	writer = output.NewWriter(output.WriterConfig{Dir: cfg.Output.Dir}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Matching tables
	tables, err := config.LoadTables(cfg.Matcher.TablesFile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load matching tables")
		return 1
	}
	normalizer := newNormalizer(tables)
	nameMatcher := matcher.New(cfg.Matcher.MinScore, normalizer)
	aliases := matcher.NewAliasTable(tables.Aliases, normalizer)
	logger.Info().Int("aliases", aliases.Len()).Msg("matching tables loaded")

	// Create forecast source
	screenshotDir := ""
	if cfg.Output.Screenshots && !*dryRun {
		screenshotDir = writer.ScreenshotDir(day)
	}
	forecasts := forecast.NewSource(
		forecast.SourceConfig{
			BaseURL: cfg.Forecast.BaseURL,
			Browser: forecast.BrowserConfig{
				Headless:      cfg.Forecast.Headless,
				Timeout:       cfg.Forecast.Timeout,
				Settle:        cfg.Forecast.Settle,
				ExecPath:      cfg.Forecast.ChromeExe,
				ScreenshotDir: screenshotDir,
			},
		},
		normalizer,
		logger,
	)

	// Create exchange client
	markets, err := exchange.NewClient(
		exchange.ClientConfig{
			BaseURL:          cfg.Exchange.BaseURL,
			Timeout:          cfg.Exchange.Timeout,
			RateLimit:        cfg.Exchange.RateLimit,
			MaxRetries:       cfg.Exchange.MaxRetries,
			PageLimit:        cfg.Exchange.PageLimit,
			TournamentSeries: cfg.Exchange.TournamentSeries,
			GameSeries:       cfg.Exchange.GameSeries,
			KeyID:            cfg.Exchange.KeyID,
			PrivateKeyPath:   cfg.Exchange.PrivateKeyPath,
		},
		logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create exchange client")
		return 1
	}

	m := metrics.New()
	pipeline := service.NewPipeline(
		service.PipelineConfig{
			Conferences:      cfg.ConferenceCodes(),
			ConferenceSeries: cfg.ConferenceSeries(),
			MinEV:            cfg.EV.MinEV,
			ShareFactor:      cfg.EV.ShareFactor,
			TopN:             cfg.EV.TopN,
			Preflight:        cfg.Exchange.Preflight,
			Aliases:          aliases,
		},
		forecasts,
		markets,
		nameMatcher,
		ev.NewCalculator(cfg.EV.ToEVParams(), logger),
		logger,
	).WithMetrics(m)

	// Create Kafka publisher
	var publisher service.Publisher
	if cfg.Kafka.Enabled && !*dryRun {
		kp := messaging.NewKafkaPublisher(
			messaging.KafkaPublisherConfig{
				Brokers:      cfg.Kafka.Brokers,
				Topic:        cfg.Kafka.Topic,
				WriteTimeout: 10 * time.Second,
			},
			logger,
		)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close Kafka publisher")
			}
		}()
		publisher = kp
	}

	batch := service.NewBatch(service.BatchConfig{DryRun: *dryRun}, pipeline, writer, publisher, logger)
	rep, runErr := batch.Run(ctx, date)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn().Err(err).Msg("failed to push metrics")
		}
		cancel()
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("best-bets run failed")
		return 1
	}

	if cfg.Output.Table || *dryRun {
		if err := output.PrintTable(os.Stdout, rep); err != nil {
			logger.Error().Err(err).Msg("failed to print table")
			return 1
		}
	}

	logger.Info().
		Int("qualifying", rep.Qualifying).
		Int("reported", len(rep.Opportunities)).
		Msg("best-bets run complete")
	return 0
}

// newNormalizer merges the configured tables over the built-in ones
func newNormalizer(tables *config.Tables) *matcher.Normalizer {
	abbreviations := make(map[string]string, len(matcher.DefaultAbbreviations)+len(tables.Abbreviations))
	for k, v := range matcher.DefaultAbbreviations {
		abbreviations[k] = v
	}
	for k, v := range tables.Abbreviations {
		abbreviations[k] = v
	}
	mascots := append(append([]string{}, matcher.DefaultMascots...), tables.Mascots...)
	return matcher.NewNormalizer(abbreviations, mascots)
}

// setupLogger configures the logger based on config. When file is set every
// line is also written there as plain text.
func setupLogger(cfg config.LoggingConfig, file io.Writer) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Stdout carries the table
	var console io.Writer = os.Stderr
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	out := console
	if file != nil {
		out = zerolog.MultiLevelWriter(console, zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: time.RFC3339})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return log.Logger.With().Str("service", "bestbets").Logger()
}
