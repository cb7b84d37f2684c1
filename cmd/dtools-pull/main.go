package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/excelcw/dtools-pull/internal/aggregate"
	"github.com/excelcw/dtools-pull/internal/cache"
	"github.com/excelcw/dtools-pull/internal/config"
	"github.com/excelcw/dtools-pull/internal/dtools"
	"github.com/excelcw/dtools-pull/internal/metrics"
	"github.com/excelcw/dtools-pull/internal/pipeline"
	"github.com/excelcw/dtools-pull/internal/quota"
	"github.com/excelcw/dtools-pull/internal/report"
	"github.com/excelcw/dtools-pull/internal/status"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup structured logging before anything can fail
	stderrLogger := zerolog.New(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		stderrLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logFile, err := os.Create(cfg.LogFile)
	if err != nil {
		stderrLogger.Fatal().Err(err).Msg("failed to open log file")
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if cfg.Environment == "development" {
		out = zerolog.MultiLevelWriter(logFile, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
	log.Logger = logger

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	profile, err := config.LoadProfile(cfg.ProfileFile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load run profile")
		return 1
	}

	cols, err := report.Resolve(profile.Columns)
	if err != nil {
		logger.Error().Err(err).Msg("invalid column selection")
		return 1
	}

	creds, err := dtools.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Error().Err(err).Msg("invalid or missing credentials file")
		return 1
	}

	store, err := cache.NewFileStore(cfg.CacheDir, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare cache directories")
		return 1
	}

	tracker := quota.Load(cfg.QuotaFile, cfg.DailyQuota, logger)
	m := metrics.New()

	logger.Info().
		Str("output", profile.Output).
		Strs("columns", cols.Names()).
		Int("calls_used_today", tracker.UsedToday()).
		Int("last_run_calls", tracker.LastRun()).
		Msg("starting pull")

	client := dtools.NewClient(cfg.BaseURL, dtools.NewCredentialsAuth(creds), tracker, cfg.PacingInterval, m, logger)

	policy := aggregate.CachePolicy{
		TimeEntries:     profile.PreferTimeEntries(),
		OpportunityList: profile.PreferOpportunityList(),
		Details:         profile.PreferDetails(),
		Quotes:          profile.PreferQuotes(),
		ChangeOrders:    profile.PreferChangeOrders(),
	}
	engine := aggregate.New(client, store, policy, cols.Views(), m, logger)

	// Header goes out before the worker starts so a fatal abort still
	// leaves a well-formed (if row-less) CSV behind.
	csvFile, err := os.Create(profile.Output)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create output file")
		return 1
	}
	defer csvFile.Close()

	writer := report.NewWriter(csvFile, cols)
	if err := writer.WriteHeader(); err != nil {
		logger.Error().Err(err).Msg("failed to write csv header")
		return 1
	}

	var statusServer *status.Server
	if cfg.StatusEnabled() {
		statusServer = status.NewServer(cfg.StatusAddr, m, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error().Err(err).Msg("status server error")
			}
		}()
		defer statusServer.Shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runner := pipeline.New(engine, tracker, cols, writer, m, logger)
	runner.Start(ctx)

	commitQuota := func() {
		if err := tracker.Commit(); err != nil {
			logger.Error().Err(err).Msg("failed to persist quota record")
		}
	}

	progress := runner.Progress()
	for progress != nil {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			logger.Info().
				Str("phase", p.Phase).
				Int("percent", int(p.Fraction*100)).
				Int("calls_used", p.CallsUsed).
				Int("rows", p.Rows).
				Msg("progress")
			if statusServer != nil {
				statusServer.Update(status.Snapshot{
					Phase:     p.Phase,
					Fraction:  p.Fraction,
					CallsUsed: p.CallsUsed,
					Rows:      p.Rows,
				})
			}
		case sig := <-sigCh:
			// Forced shutdown is a fatal path, but the call ledger must
			// survive it.
			logger.Error().Str("signal", sig.String()).Msg("forced shutdown")
			cancel()
			commitQuota()
			return 1
		}
	}

	result, runErr := runner.Wait()
	commitQuota()

	if statusServer != nil {
		snap := status.Snapshot{
			Phase:     "done",
			Fraction:  1,
			CallsUsed: tracker.UsedToday(),
			Rows:      result.Rows,
			Completed: true,
		}
		if runErr != nil {
			snap.Error = runErr.Error()
		}
		statusServer.Update(snap)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("run aborted")
		return 1
	}

	logger.Info().
		Int("opportunities", result.Opportunities).
		Int("skipped", result.Skipped).
		Int("rows", result.Rows).
		Str("output", profile.Output).
		Msg("pull finished")
	return 0
}
