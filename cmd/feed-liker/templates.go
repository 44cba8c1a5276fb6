package main

import (
	"fmt"
	"path/filepath"

	cli "github.com/spf13/cobra"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/pkg/templates"
)

var templatesCmd = &cli.Command{
	Use:   "templates",
	Short: "Show which template images are loaded",
	RunE:  runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cli.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}

	registry := templates.NewTemplateRegistry(settings.Paths.Templates).WithLogger(logging.Discard())
	if err := registry.Load(); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Templates in %s\n", settings.Paths.Templates)

	var missingRequired []string
	for _, s := range registry.Statuses() {
		need := "optional"
		if s.Required {
			need = "required"
		}
		fmt.Fprintf(w, "\n  %s (%s, threshold %.2f)\n", s.Kind, need, s.Threshold)
		for _, v := range s.Loaded {
			fmt.Fprintf(w, "    ok  %-24s %dx%d\n", filepath.Base(v.Path), v.Size.X, v.Size.Y)
		}
		for _, m := range s.Missing {
			fmt.Fprintf(w, "    -   %s\n", filepath.Base(m))
		}
		if s.Required && len(s.Loaded) == 0 {
			missingRequired = append(missingRequired, string(s.Kind))
		}
	}

	if len(missingRequired) > 0 {
		return fmt.Errorf("%w: %v (run setup)", templates.ErrMissingTemplate, missingRequired)
	}
	return nil
}
