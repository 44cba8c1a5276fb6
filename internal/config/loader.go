package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"
	"jordanella.com/feed-liker/internal/bot"
	"jordanella.com/feed-liker/internal/pace"
)

// DefaultFile is the settings file looked up next to the working directory
const DefaultFile = "Settings.ini"

// Paths locates the files a run reads and writes
type Paths struct {
	Templates string
	Logs      string
	Database  string
}

// Settings is everything loaded from the settings file
type Settings struct {
	Bot      bot.Config
	Paths    Paths
	LogLevel string
}

// NewDefaultSettings creates settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		Bot: bot.DefaultConfig(),
		Paths: Paths{
			Templates: "templates",
			Logs:      "logs",
			Database:  filepath.Join("data", "journal.db"),
		},
		LogLevel: "INFO",
	}
}

// LoadFromINI loads settings from an INI file. A missing file yields the defaults.
func LoadFromINI(path string) (*Settings, error) {
	settings := NewDefaultSettings()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	c := &settings.Bot

	// Run
	run := cfg.Section("Run")
	c.TargetCount = run.Key("targetCount").MustInt(c.TargetCount)
	c.ActionProbability = run.Key("actionProbability").MustFloat64(c.ActionProbability)
	c.DryRun = run.Key("dryRun").MustBool(c.DryRun)

	// Paths
	paths := cfg.Section("Paths")
	settings.Paths.Templates = paths.Key("templates").MustString(settings.Paths.Templates)
	settings.Paths.Logs = paths.Key("logs").MustString(settings.Paths.Logs)
	settings.Paths.Database = paths.Key("database").MustString(settings.Paths.Database)

	// Tuning
	tuning := cfg.Section("Tuning")
	t := &c.Tuning
	t.TriggerThreshold = tuning.Key("triggerThreshold").MustFloat64(t.TriggerThreshold)
	t.MarkerThreshold = tuning.Key("markerThreshold").MustFloat64(t.MarkerThreshold)
	t.UndoThreshold = tuning.Key("undoThreshold").MustFloat64(t.UndoThreshold)
	t.VariantMergeDistance = tuning.Key("variantMergeDistance").MustInt(t.VariantMergeDistance)
	t.DedupTolerance = tuning.Key("dedupTolerance").MustInt(t.DedupTolerance)
	t.ActedRowTolerance = tuning.Key("actedRowTolerance").MustInt(t.ActedRowTolerance)
	t.ActionOffsetX = tuning.Key("actionOffsetX").MustInt(t.ActionOffsetX)
	t.PixelsPerScrollUnit = tuning.Key("pixelsPerScrollUnit").MustInt(t.PixelsPerScrollUnit)
	t.ScrollUnitsMin = tuning.Key("scrollUnitsMin").MustInt(t.ScrollUnitsMin)
	t.ScrollUnitsMax = tuning.Key("scrollUnitsMax").MustInt(t.ScrollUnitsMax)

	// Timing
	timing := cfg.Section("Timing")
	tm := &c.Timing
	tm.MenuSettle = loadRange(timing, "menuSettle", tm.MenuSettle)
	tm.RevertSettle = timing.Key("revertSettle").MustDuration(tm.RevertSettle)
	tm.CommitSettle = loadRange(timing, "commitSettle", tm.CommitSettle)
	tm.BetweenActions = loadRange(timing, "betweenActions", tm.BetweenActions)
	tm.ReadingPause = loadRange(timing, "readingPause", tm.ReadingPause)
	tm.ScrollSettle = loadRange(timing, "scrollSettle", tm.ScrollSettle)

	// Motion
	motion := cfg.Section("Motion")
	m := &c.Motion
	m.PixelsPerSecond = motion.Key("pixelsPerSecond").MustFloat64(m.PixelsPerSecond)
	m.MinDuration = motion.Key("minDuration").MustDuration(m.MinDuration)
	m.MaxDuration = motion.Key("maxDuration").MustDuration(m.MaxDuration)
	m.StepsPerSecond = motion.Key("stepsPerSecond").MustInt(m.StepsPerSecond)
	m.ClickJitter = motion.Key("clickJitter").MustInt(m.ClickJitter)
	m.PreClick = loadRange(motion, "preClick", m.PreClick)

	// Logging
	settings.LogLevel = cfg.Section("Logging").Key("level").MustString(settings.LogLevel)

	return settings, nil
}

func loadRange(section *ini.Section, prefix string, def pace.Range) pace.Range {
	return pace.Range{
		Min: section.Key(prefix + "Min").MustDuration(def.Min),
		Max: section.Key(prefix + "Max").MustDuration(def.Max),
	}
}

// Normalize caps the target count and clamps the action probability.
// It returns a description of every value it changed.
func Normalize(c *bot.Config) []string {
	var changed []string

	if c.TargetCount > bot.MaxTargetCount {
		changed = append(changed, fmt.Sprintf("target count %d capped at %d", c.TargetCount, bot.MaxTargetCount))
		c.TargetCount = bot.MaxTargetCount
	}
	if c.TargetCount < 1 {
		changed = append(changed, fmt.Sprintf("target count %d raised to 1", c.TargetCount))
		c.TargetCount = 1
	}

	p := c.ActionProbability
	switch {
	case math.IsNaN(p):
		c.ActionProbability = bot.DefaultConfig().ActionProbability
	case p < 0:
		c.ActionProbability = 0
	case p > 1:
		c.ActionProbability = 1
	}
	if c.ActionProbability != p {
		changed = append(changed, fmt.Sprintf("action probability %v clamped to %v", p, c.ActionProbability))
	}

	return changed
}

// SaveToINI writes the settings to an INI file
func SaveToINI(settings *Settings, path string) error {
	cfg := ini.Empty()
	c := settings.Bot

	run := cfg.Section("Run")
	run.Key("targetCount").SetValue(strconv.Itoa(c.TargetCount))
	run.Key("actionProbability").SetValue(strconv.FormatFloat(c.ActionProbability, 'g', -1, 64))
	run.Key("dryRun").SetValue(strconv.FormatBool(c.DryRun))

	paths := cfg.Section("Paths")
	paths.Key("templates").SetValue(settings.Paths.Templates)
	paths.Key("logs").SetValue(settings.Paths.Logs)
	paths.Key("database").SetValue(settings.Paths.Database)

	tuning := cfg.Section("Tuning")
	t := c.Tuning
	tuning.Key("triggerThreshold").SetValue(formatFloat(t.TriggerThreshold))
	tuning.Key("markerThreshold").SetValue(formatFloat(t.MarkerThreshold))
	tuning.Key("undoThreshold").SetValue(formatFloat(t.UndoThreshold))
	tuning.Key("variantMergeDistance").SetValue(strconv.Itoa(t.VariantMergeDistance))
	tuning.Key("dedupTolerance").SetValue(strconv.Itoa(t.DedupTolerance))
	tuning.Key("actedRowTolerance").SetValue(strconv.Itoa(t.ActedRowTolerance))
	tuning.Key("actionOffsetX").SetValue(strconv.Itoa(t.ActionOffsetX))
	tuning.Key("pixelsPerScrollUnit").SetValue(strconv.Itoa(t.PixelsPerScrollUnit))
	tuning.Key("scrollUnitsMin").SetValue(strconv.Itoa(t.ScrollUnitsMin))
	tuning.Key("scrollUnitsMax").SetValue(strconv.Itoa(t.ScrollUnitsMax))

	timing := cfg.Section("Timing")
	saveRange(timing, "menuSettle", c.Timing.MenuSettle)
	timing.Key("revertSettle").SetValue(c.Timing.RevertSettle.String())
	saveRange(timing, "commitSettle", c.Timing.CommitSettle)
	saveRange(timing, "betweenActions", c.Timing.BetweenActions)
	saveRange(timing, "readingPause", c.Timing.ReadingPause)
	saveRange(timing, "scrollSettle", c.Timing.ScrollSettle)

	motion := cfg.Section("Motion")
	motion.Key("pixelsPerSecond").SetValue(formatFloat(c.Motion.PixelsPerSecond))
	motion.Key("minDuration").SetValue(c.Motion.MinDuration.String())
	motion.Key("maxDuration").SetValue(c.Motion.MaxDuration.String())
	motion.Key("stepsPerSecond").SetValue(strconv.Itoa(c.Motion.StepsPerSecond))
	motion.Key("clickJitter").SetValue(strconv.Itoa(c.Motion.ClickJitter))
	saveRange(motion, "preClick", c.Motion.PreClick)

	cfg.Section("Logging").Key("level").SetValue(settings.LogLevel)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return cfg.SaveTo(path)
}

func saveRange(section *ini.Section, prefix string, r pace.Range) {
	section.Key(prefix + "Min").SetValue(r.Min.String())
	section.Key(prefix + "Max").SetValue(r.Max.String())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Summary renders the effective run settings for the start banner
func Summary(settings *Settings) []string {
	c := settings.Bot
	return []string{
		fmt.Sprintf("Target elements:    %d", c.TargetCount),
		fmt.Sprintf("Action probability: %.0f%%", c.ActionProbability*100),
		fmt.Sprintf("Dry run:            %t", c.DryRun),
		fmt.Sprintf("Scroll ceiling:     %d steps", c.ScrollCeiling()),
		fmt.Sprintf("Between actions:    %v to %v", c.Timing.BetweenActions.Min, c.Timing.BetweenActions.Max),
		fmt.Sprintf("Templates:          %s", settings.Paths.Templates),
	}
}
