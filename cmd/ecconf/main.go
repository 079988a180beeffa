package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/KevinKickass/ecconf/internal/system"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	fs := pflag.NewFlagSet("ecconf", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ecconf [flags] [topology.xml]\n")
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfgPath, _ := fs.GetString("config")
	cfg, err := config.Load(cfgPath, fs)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if fs.NArg() > 1 {
		fs.Usage()
		os.Exit(2)
	}
	if fs.NArg() == 1 {
		cfg.Input = fs.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level, err := cfg.Log.ZapLevel()
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	lifecycle, err := system.NewLifecycleManager(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := lifecycle.Start(ctx); err != nil {
		logger.Error("Configuration failed", zap.Error(err))
		if err := lifecycle.Shutdown(context.Background()); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}

	// The image stays published until we are told to stop.
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if err := lifecycle.Shutdown(context.Background()); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("ecconf stopped")
}
