package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/internal/app"
	"github.com/six78/feature-negotiation/internal/config"
	"github.com/six78/feature-negotiation/internal/version"
)

func main() {
	config.ParseArguments()
	config.SetupLogger()

	os.Exit(run())
}

func run() int {
	logger := config.Logger
	defer func() { _ = logger.Sync() }()

	logger.Info("starting featured",
		zap.String("version", version.Version()),
		zap.String("logFile", config.LogFilePath),
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	a := app.NewApp(context.Background(), app.WithLogger(logger))
	defer a.Stop()

	err := a.Initialize()
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if config.Status() {
		status, err := a.Status()
		if err != nil {
			logger.Error("failed to render status", zap.Error(err))
			return 1
		}
		fmt.Println(status)
		return 0
	}

	err = a.Start()
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("featured %s running, logs at %s\n", version.Version(), config.LogFilePath)

	sig := <-signals
	logger.Info("shutting down", zap.String("signal", sig.String()))

	// Peers keep waiting for a node that merely restarts.
	if config.Decommission() {
		err = a.Leave()
		if err != nil {
			logger.Warn("failed to announce leave", zap.Error(err))
		}
	}

	report, err := a.Report()
	if err == nil {
		fmt.Println(report)
	}

	return 0
}
