package main

import (
	"errors"
	"fmt"
	"os"

	"askforge-client/db"
	"askforge-client/instance"
	"askforge-client/ui"
	"askforge-client/utils"

	"github.com/spf13/pflag"
)

var (
	version = "1.0.0"
)

func main() {
	configPath := pflag.String("config", "", "path to the configuration file")
	showVersion := pflag.Bool("version", false, "show version information")
	debug := pflag.Bool("debug", false, "verbose logging")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("AskForge-AI Client v%s\n", version)
		os.Exit(0)
	}

	logger, err := utils.NewLogger(utils.GetLogPath())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.SetDebug(*debug)

	logger.Info("Starting AskForge-AI Client v%s", version)

	guard, err := instance.Acquire(instance.DefaultAddr, logger)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		logger.Info("Another instance is running, asked it to show its window")
		return
	}
	if err != nil {
		// Without the guard a second launch opens a second window; not fatal.
		logger.Warn("Single-instance guard unavailable: %v", err)
	} else {
		defer guard.Close()
	}

	if *configPath == "" {
		*configPath = utils.GetConfigPath()
	}
	config, err := utils.LoadConfigIfExists(*configPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	if config == nil {
		logger.Info("No config at %s, starting first-run setup", *configPath)
	} else {
		config.Normalize()
		logger.Info("Using config file: %s", *configPath)
	}

	historyPath := (&utils.Config{}).HistoryDBPath()
	if config != nil {
		historyPath = config.HistoryDBPath()
	}
	mirror, err := db.New(historyPath)
	if err != nil {
		logger.Error("Failed to open local history: %v", err)
		os.Exit(1)
	}
	defer mirror.Close()
	logger.Info("Local history: %s (full-text search: %t)", historyPath, mirror.FullTextSearch())

	app := ui.NewApp(config, *configPath, mirror, logger)
	defer app.Cleanup()

	if guard != nil {
		guard.OnShow(app.Show)
	}

	watcher, err := utils.WatchConfig(*configPath, logger, app.ApplyConfig)
	if err != nil {
		logger.Warn("Config file will not be watched: %v", err)
	} else {
		defer watcher.Close()
	}

	logger.Info("Application started")
	app.Run()
	logger.Info("Application stopped")
}
