package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/falkerops/partnerload/internal/browser"
	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/core"
	"github.com/falkerops/partnerload/internal/input"
	"github.com/falkerops/partnerload/internal/networking"
	"github.com/falkerops/partnerload/internal/output"
	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partnerload [csv-file]",
		Short: "Register partners from a CSV file through the ERP web interface",
		Long: `partnerload logs into the ERP with a real browser and creates one partner per
CSV row: it fills the name and tax id, runs the tax id lookup, refreshes the partner
from it, overrides phone and e-mail and saves. Records the lookup does not know, and
records that could not be saved, are appended to the failure log.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	registerFlags(cmd)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := utils.NewDefaultLogger(utils.StringToLogLevel(cfg.Log.Level), cfg.Log.NoColor, cfg.Log.Silent)

	if err := prepareConfig(cfg, logger); err != nil {
		return err
	}
	logger.Debugf("Configuration: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.SkipPreflight {
		if err := preflight(ctx, cfg, logger); err != nil {
			return err
		}
	}

	reporter := report.NewReporter()
	records, err := readRecords(cfg, reporter, logger)
	if err != nil {
		return err
	}

	failures, err := report.OpenFailureLog(cfg.Log.FailureFile)
	if err != nil {
		return err
	}
	defer failures.Close()

	state, err := core.LoadResumeState(cfg.ResumeFile)
	if err != nil {
		return err
	}
	if state.Len() > 0 {
		logger.Infof("Resuming: %d records already completed in %s", state.Len(), cfg.ResumeFile)
	}

	session, err := browser.Launch(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnf("Error closing browser: %v", err)
		}
	}()

	processor, err := core.NewProcessor(cfg, session, failures, logger)
	if err != nil {
		return err
	}
	if err := processor.Login(ctx); err != nil {
		logger.Errorf("Aborting: %v", err)
		return err
	}

	scheduler := core.NewScheduler(processor, core.NewPacer(cfg.Pacing, logger), state, logger).
		WithProgressBar(output.NewProgressBar(len(records), 40))
	for outcome := range scheduler.Run(ctx, records) {
		reporter.AddOutcome(outcome)
	}

	if err := reporter.GenerateReport(cfg.Report.OutputFile, cfg.Report.Format); err != nil {
		return fmt.Errorf("error generating report: %w", err)
	}
	logger.Infof("Finished: %s", reporter.SummaryLine())
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("interrupted")
	}
	return nil
}

// prepareConfig resolves derived fields and validates the result.
func prepareConfig(cfg *config.Config, logger utils.Logger) error {
	if cfg.Browser.ProxyInput != "" {
		proxy, err := utils.ParseProxyInput(cfg.Browser.ProxyInput, logger)
		if err != nil {
			return fmt.Errorf("invalid proxy: %w", err)
		}
		if err := browser.CheckProxy(proxy); err != nil {
			return fmt.Errorf("invalid proxy: %w", err)
		}
		cfg.Browser.ParsedProxy = proxy
	}
	if cfg.App.BaseURL != "" {
		normalized, err := utils.NormalizeBaseURL(cfg.App.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		cfg.App.BaseURL = normalized
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func preflight(ctx context.Context, cfg *config.Config, logger utils.Logger) error {
	client, err := networking.NewClient(networking.DefaultClientConfig(cfg), logger)
	if err != nil {
		return err
	}
	status, err := client.CheckReachable(ctx, cfg.App.BaseURL)
	if err != nil {
		return fmt.Errorf("%s is not reachable (use --skip-preflight to start anyway): %w", utils.GetHostIfURL(cfg.App.BaseURL), err)
	}
	logger.Infof("%s is reachable (HTTP %d)", utils.GetHostIfURL(cfg.App.BaseURL), status)
	return nil
}

// readRecords loads the input and reports rejected rows as invalid outcomes.
func readRecords(cfg *config.Config, reporter *report.Reporter, logger utils.Logger) ([]input.Record, error) {
	reader := input.NewReader([]rune(cfg.Input.Delimiter)[0])

	var (
		records []input.Record
		rowErrs []input.RowError
		err     error
	)
	if cfg.Input.Stdin {
		logger.Infof("Reading records from stdin...")
		records, rowErrs, err = reader.ReadRecordsFromStdin()
	} else {
		logger.Infof("Reading records from %s", cfg.Input.File)
		records, rowErrs, err = reader.ReadRecordsFromFile(cfg.Input.File)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	for _, rowErr := range rowErrs {
		logger.Warnf("Skipping %v", rowErr)
		reporter.AddOutcome(report.Outcome{
			Record: rowErr.Record,
			Status: report.StatusInvalid,
			Err:    rowErr,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records to process")
	}
	logger.Infof("Loaded %d records (%d rejected)", len(records), len(rowErrs))
	return records, nil
}
