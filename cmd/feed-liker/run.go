package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cli "github.com/spf13/cobra"
	"jordanella.com/feed-liker/internal/bot"
	"jordanella.com/feed-liker/internal/config"
	"jordanella.com/feed-liker/internal/database"
	"jordanella.com/feed-liker/internal/device"
	"jordanella.com/feed-liker/internal/events"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/pkg/templates"
)

var runOpts struct {
	count  int
	rate   float64
	dryRun bool
	yes    bool
}

var runCmd = &cli.Command{
	Use:   "run",
	Short: "Process the feed currently on screen",
	Long: `Scans the feed in the foreground window, opens the menu of fresh posts and
acts on a random share of them. Move the pointer to the top-left corner of
the screen or press Ctrl+C to stop.`,
	RunE: runFeed,
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runOpts.count, "count", "n", 0, "elements to process (max 20)")
	f.Float64VarP(&runOpts.rate, "rate", "r", 0, "probability of acting on an element, 0 to 1")
	f.BoolVar(&runOpts.dryRun, "dry-run", false, "detect and decide without clicking")
	f.BoolVarP(&runOpts.yes, "yes", "y", false, "start without the confirmation prompt")
	rootCmd.AddCommand(runCmd)
}

func runFeed(cmd *cli.Command, args []string) error {
	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}

	cfg := &settings.Bot
	if cmd.Flags().Changed("count") {
		cfg.TargetCount = runOpts.count
	}
	if cmd.Flags().Changed("rate") {
		cfg.ActionProbability = runOpts.rate
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = runOpts.dryRun
	}
	for _, change := range config.Normalize(cfg) {
		logger.Warn(change)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Per-run log file
	if err := os.MkdirAll(settings.Paths.Logs, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")
	logFile, err := os.Create(filepath.Join(settings.Paths.Logs, fmt.Sprintf("run_%s.log", stamp)))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	logger.AddOutput(logFile)

	registry := templates.NewTemplateRegistry(settings.Paths.Templates).WithLogger(logger.Named("Templates"))
	if err := registry.Load(); err != nil {
		return err
	}

	printBanner(cmd.OutOrStdout(), settings)
	if !runOpts.yes {
		if err := waitForEnter(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	bus := events.NewEventBus()

	eventLogger, err := logging.NewEventLogger(bus, settings.Paths.Logs)
	if err != nil {
		logger.Error("Event log disabled", err)
	} else {
		defer eventLogger.Close()
	}

	journal, err := database.OpenJournal(settings.Paths.Database)
	if err != nil {
		logger.ErrorWithContext("Run journal disabled", err, logging.Fields{"path": settings.Paths.Database})
	} else {
		defer journal.Close()
		recorder := database.NewRecorder(journal, bus, logger.Named("Journal"))
		defer recorder.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(*cfg, bot.Deps{
		Capturer:  device.NewScreenCapturer(0),
		Input:     device.NewRobot(),
		Templates: registry,
		Logger:    logger.Named("Bot"),
		Bus:       bus,
	})
	if err != nil {
		return err
	}

	summary, runErr := b.Run(ctx)
	printSummary(cmd.OutOrStdout(), summary)
	return runErr
}

func printBanner(w io.Writer, settings *config.Settings) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " feed-liker")
	fmt.Fprintln(w, "==================================================")
	for _, line := range config.Summary(settings) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w, "  Stop: move the pointer to the top-left corner or press Ctrl+C")
	fmt.Fprintln(w, "==================================================")
}

func waitForEnter(r io.Reader, w io.Writer) error {
	fmt.Fprint(w, "Bring the feed to the foreground, then press Enter to start...")
	if _, err := bufio.NewReader(r).ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, s bot.Summary) {
	fmt.Fprintln(w, "\n=== Run summary ===")
	fmt.Fprintf(w, "  Run:            %s\n", s.RunID)
	fmt.Fprintf(w, "  Processed:      %d\n", s.Processed)
	if s.DryRun {
		fmt.Fprintf(w, "  Simulated:      %d\n", s.Committed)
	} else {
		fmt.Fprintf(w, "  Committed:      %d\n", s.Committed)
	}
	fmt.Fprintf(w, "  Already acted:  %d\n", s.AlreadyActed)
	fmt.Fprintf(w, "  Failed:         %d\n", s.Failed)
	fmt.Fprintf(w, "  Scrolls:        %d\n", s.Scrolls)
	fmt.Fprintf(w, "  Duration:       %s\n", s.Duration().Round(time.Second))
	fmt.Fprintf(w, "  Stopped:        %s\n", s.StopReason)
}
