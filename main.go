package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/api"
	"github.com/vainnor/session-report/collector"
	"github.com/vainnor/session-report/config"
	"github.com/vainnor/session-report/db"
	"github.com/vainnor/session-report/models"
	"github.com/vainnor/session-report/report"
	"github.com/vainnor/session-report/services/ingest"
)

type options struct {
	configPath string
	envFile    string
	input      string
	format     string
	sheet      string
	output     string
	title      string
	capacity   int
	threshold  int
	autoGrow   bool
	importDB   bool
	serve      bool
	addr       string
	debug      bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("session-report", pflag.ExitOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default $SESSION_REPORT_CONFIG)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "file with environment variables to load")
	flags.StringVarP(&opts.input, "input", "i", "", "session log: .xlsx, .csv, .json or an http(s) URL")
	flags.StringVarP(&opts.format, "format", "f", "", "input format: xlsx, csv, json or postgres (default from extension)")
	flags.StringVar(&opts.sheet, "sheet", "", "worksheet to read (default first sheet)")
	flags.StringVarP(&opts.output, "output", "o", "", "HTML report to write")
	flags.StringVar(&opts.title, "title", "", "report title")
	flags.IntVar(&opts.capacity, "capacity", 0, "timeline rows per server")
	flags.IntVar(&opts.threshold, "threshold", 0, "flag users with more simultaneous sessions than this")
	flags.BoolVar(&opts.autoGrow, "auto-grow", false, "grow the rows per server to the observed peak instead of failing")
	flags.BoolVar(&opts.importDB, "import-db", false, "copy the loaded records into the database")
	flags.BoolVar(&opts.serve, "serve", false, "serve the report over HTTP after writing it")
	flags.StringVar(&opts.addr, "addr", "", "listen address for --serve")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.Parse(os.Args[1:])

	logger, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(flags, opts, logger); err != nil {
		logger.Error("Failed to build session report", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(flags *pflag.FlagSet, opts options, logger *zap.Logger) error {
	// Load environment variables
	if err := config.LoadEnv(opts.envFile); err != nil {
		logger.Warn("Error loading .env file", zap.Error(err))
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(flags, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := loadRecords(ctx, cfg, opts.importDB, logger)
	if err != nil {
		return err
	}

	c := collector.NewCollector(logger)
	if err := c.RegisterAll(records); err != nil {
		return err
	}

	r, err := report.Build(c, report.Options{
		Title:             cfg.Output.Title,
		Environments:      cfg.EnvironmentNames(),
		Colors:            cfg.Colors(),
		SlotCapacity:      cfg.Timeline.SlotCapacity,
		AutoGrow:          cfg.Timeline.AutoGrow,
		OffenderThreshold: cfg.Timeline.OffenderThreshold,
		OpenPadding:       cfg.Timeline.OpenPadding,
	}, logger)
	if err != nil {
		return err
	}

	if err := writeReport(cfg.Output.Path, r); err != nil {
		return err
	}
	logger.Info("Report written", zap.String("path", cfg.Output.Path))

	if !opts.serve {
		return nil
	}
	return serve(ctx, cfg.Server.Addr, api.NewRouter(r, c, logger), logger)
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(flags *pflag.FlagSet, opts options, cfg *config.Config) {
	if flags.Changed("input") {
		cfg.Input.Path = opts.input
	}
	if flags.Changed("format") {
		cfg.Input.Format = opts.format
	}
	if flags.Changed("sheet") {
		cfg.Input.Sheet = opts.sheet
	}
	if flags.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flags.Changed("title") {
		cfg.Output.Title = opts.title
	}
	if flags.Changed("capacity") {
		cfg.Timeline.SlotCapacity = opts.capacity
	}
	if flags.Changed("threshold") {
		cfg.Timeline.OffenderThreshold = opts.threshold
	}
	if flags.Changed("auto-grow") {
		cfg.Timeline.AutoGrow = opts.autoGrow
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
}

func loadRecords(ctx context.Context, cfg *config.Config, importDB bool, logger *zap.Logger) ([]models.Record, error) {
	if cfg.Input.Format == config.FormatPostgres {
		client, err := db.InitDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		defer client.Close()
		return client.LoadRecords(ctx)
	}

	if cfg.Input.Path == "" {
		return nil, errors.New("no input given; pass --input or set input.path")
	}
	loader := ingest.NewLoader(logger, ingest.Parser{Layout: cfg.Input.TimeLayout, AllowSerial: true})
	records, err := loader.Load(ctx, cfg.Input.Path, cfg.Input.Format, cfg.Input.Sheet)
	if err != nil {
		return nil, err
	}

	if importDB {
		client, err := db.InitDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		defer client.Close()
		if err := client.ImportRecords(ctx, records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func writeReport(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.RenderHTML(f, r); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start API server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
