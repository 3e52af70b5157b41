package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/feedmon/pkg/agent"
	"github.com/umputun/feedmon/pkg/config"
	"github.com/umputun/feedmon/pkg/feed"
	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/notify"
	"github.com/umputun/feedmon/pkg/repository"
	"github.com/umputun/feedmon/pkg/scheduler"
	"github.com/umputun/feedmon/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"configuration file, defaults are used if not set"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`
	MCP    bool   `long:"mcp" env:"MCP" description:"serve agent tools over stdio instead of http"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug, opts.MCP)
	log.Printf("[INFO] starting feedmon version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	log.Print("[INFO] shutdown complete")
}

// run wires storage, engine, scheduler and the selected surface, blocks until ctx is done
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if cfg.Notify.Telegram.Token != "" {
		setupLog(opts.Debug, opts.MCP, cfg.Notify.Telegram.Token)
	}

	st, closeStore, err := makeStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore()

	hub := notify.NewHub(64)
	sinks, err := makeSinks(cfg.Notify, hub)
	if err != nil {
		return fmt.Errorf("failed to setup notifications: %w", err)
	}
	notifier := notify.NewDispatcher(cfg.Notify.Timeout, sinks...)
	defer notifier.Close()

	engine := monitor.New(monitor.Params{
		Fetcher: feed.NewParser(feed.ParserParams{
			Timeout:     cfg.Fetch.Timeout,
			UserAgent:   cfg.Fetch.UserAgent,
			MaxBodySize: cfg.Fetch.MaxBodySize,
		}),
		Store:      st,
		Notifier:   notifier,
		Retention:  cfg.Matches.Retention,
		MaxWorkers: cfg.Schedule.MaxWorkers,
	})
	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	sched := scheduler.New(scheduler.Params{
		Checker:     engine,
		Interval:    cfg.Schedule.Interval,
		GracePeriod: cfg.Schedule.GracePeriod,
		RunOnStart:  cfg.Schedule.RunOnStart,
	})
	sched.Start(ctx)
	defer sched.Stop()

	commands := monitor.NewDispatcher(engine, sched)

	if opts.MCP {
		lgr.Printf("[INFO] serving agent tools on stdio")
		if err := agent.NewServer(commands, revision).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server failed: %w", err)
		}
		return nil
	}

	srv := server.New(server.Params{
		Dispatcher: commands,
		Events:     hub,
		Status:     sched,
		Listen:     cfg.Server.Listen,
		Timeout:    cfg.Server.Timeout,
		BaseURL:    cfg.Server.BaseURL,
		Version:    revision,
		Debug:      opts.Debug,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// makeStore opens the configured state backend, the returned func releases it
func makeStore(ctx context.Context, cfg config.StorageConfig) (monitor.Store, func(), error) {
	switch cfg.Type {
	case "json":
		lgr.Printf("[INFO] state file %s", cfg.Path)
		return repository.NewJSONFile(cfg.Path), func() {}, nil
	case "sqlite":
		db, err := repository.NewSQLite(ctx, repository.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				lgr.Printf("[WARN] failed to close database: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// makeSinks builds notification sinks. Push sinks only deliver events of topics with extension notifications on.
func makeSinks(cfg config.NotifyConfig, hub *notify.Hub) ([]notify.Sink, error) {
	sinks := []notify.Sink{hub}
	if cfg.Log {
		sinks = append(sinks, notify.Log{L: lgr.Default()})
	}
	if cfg.Webhook.URL != "" {
		lgr.Printf("[INFO] webhook notifications enabled")
		sinks = append(sinks, notify.PushOnly(notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.Retries)))
	}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		lgr.Printf("[INFO] telegram notifications enabled")
		sinks = append(sinks, notify.PushOnly(tg))
	}
	return sinks, nil
}

// setupLog configures lgr, in mcp mode logs go to stderr as stdout carries the protocol
func setupLog(dbg, mcp bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}
	if mcp {
		logOpts = append(logOpts, lgr.Out(os.Stderr), lgr.Err(os.Stderr))
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
