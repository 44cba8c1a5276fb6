package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/spf13/cobra"
	"jordanella.com/feed-liker/internal/config"
	"jordanella.com/feed-liker/internal/device"
	"jordanella.com/feed-liker/internal/logging"
)

// Exit codes
const (
	exitError     = 1
	exitInterrupt = 130
)

var configPath string

var rootCmd = &cli.Command{
	Use:           "feed-liker",
	Short:         "Scroll a social feed and act on posts like a person would",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "settings file")
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, device.ErrFailSafe) {
		fmt.Fprintf(os.Stderr, "\nStopped: %v\n", err)
		os.Exit(exitInterrupt)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}

// loadSettings reads the settings file and builds the console logger
func loadSettings() (*config.Settings, *logging.Logger, error) {
	settings, err := config.LoadFromINI(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger("FeedLiker")
	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.WarnWithContext("Unknown log level, using INFO", logging.Fields{"level": settings.LogLevel})
	}
	logger.SetMinLevel(level)

	return settings, logger, nil
}
