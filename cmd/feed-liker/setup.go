package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	cli "github.com/spf13/cobra"
	"jordanella.com/feed-liker/internal/config"
	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/device"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/internal/setup"
)

var setupCmd = &cli.Command{
	Use:   "setup",
	Short: "Capture the template images from the screen",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cli.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}

	// First setup also writes a settings file with every tunable
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.SaveToINI(settings, configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default settings to %s\n", configPath)
	}

	robot := device.NewRobot().DisableFailSafe()
	screen := device.NewScreenCapturer(0)

	width, _ := robot.LogicalSize()
	scale, err := cv.NewService(screen).ScaleFactor(width)
	if err != nil {
		return err
	}
	logger.InfoWithContext("Display measured", logging.Fields{"scale": scale})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	wizard := setup.NewWizard(setup.Deps{
		Pointer: robot,
		Screen:  screen,
		Scale:   scale,
		Dir:     settings.Paths.Templates,
		In:      cmd.InOrStdin(),
		Out:     cmd.OutOrStdout(),
		Logger:  logger.Named("Setup"),
	})

	report, err := wizard.Run(ctx, setup.DefaultItems())
	if err != nil {
		return err
	}
	if !report.Complete() {
		return fmt.Errorf("templates missing: %v", report.Missing)
	}
	return nil
}
