package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/app"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/config"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docshield: %v\n", err)
		return 2
	}

	input := flag.String("input", "", "Directory (or single file) to convert")
	output := flag.String("output", "", "Directory for converted files")
	flag.Func("include", "Comma-separated glob patterns to include", appendPatterns(&cfg.Pipeline.Include))
	flag.Func("exclude", "Comma-separated glob patterns to exclude", appendPatterns(&cfg.Pipeline.Exclude))
	flag.IntVar(&cfg.Pipeline.Workers, "workers", cfg.Pipeline.Workers, "Concurrent conversions (0 = one per CPU)")
	flag.BoolVar(&cfg.Pipeline.Hidden, "hidden", cfg.Pipeline.Hidden, "Include hidden files and directories")
	flag.StringVar(&cfg.Reporter.Path, "report", cfg.Reporter.Path, "Write error reports to this file")
	flag.StringVar(&cfg.Reporter.Format, "report-format", cfg.Reporter.Format, "Report format: json, yaml or text")
	flag.StringVar(&cfg.Recovery.RulesFile, "rules", cfg.Recovery.RulesFile, "YAML or TOML file overriding recovery rules")
	flag.StringVar(&cfg.Recovery.Intervention, "on-intervention", cfg.Recovery.Intervention, "Answer to user-intervention requests")
	flag.BoolVar(&cfg.Server.Enabled, "serve", cfg.Server.Enabled, "Serve the status API and keep running after the batch")
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Status API port")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Human-readable logs")
	flag.Parse()

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "docshield: -input and -output are required")
		flag.Usage()
		return 2
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docshield: invalid log level: %v\n", err)
		return 2
	}
	defer logger.Sync()

	stack, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv, err := stack.Server()
		if err != nil {
			logger.Error("Failed to create server", zap.Error(err))
			return 2
		}
		go func() { serverErr <- srv.Run(ctx) }()
	}

	summary, runErr := stack.Convert(ctx, *input, *output)
	if runErr != nil && summary == nil {
		logger.Error("Batch failed to start", zap.Error(runErr))
		return app.ExitCode(nil, runErr)
	}
	if runErr != nil {
		logger.Warn("Batch stopped early", zap.Error(runErr))
	}

	data, err := sonic.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Error("Failed to encode summary", zap.Error(err))
	} else {
		os.Stdout.Write(append(data, '\n'))
	}
	if err := stack.ExportReports(); err != nil {
		logger.Error("Failed to export reports", zap.Error(err))
	}

	if cfg.Server.Enabled && ctx.Err() == nil {
		logger.Info("Batch finished, status API still serving; interrupt to exit")
		if err := <-serverErr; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server error", zap.Error(err))
		}
	}
	return app.ExitCode(summary, runErr)
}

func appendPatterns(dst *[]string) func(string) error {
	return func(s string) error {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				*dst = append(*dst, p)
			}
		}
		return nil
	}
}
