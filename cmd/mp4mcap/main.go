// Package main provides the CLI entry point for mp4mcap.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/mp4mcap/pkg/adapters/logger"
	"github.com/user/mp4mcap/pkg/adapters/mcaplog"
	"github.com/user/mp4mcap/pkg/adapters/osfilesystem"
	"github.com/user/mp4mcap/pkg/adapters/progressbar"
	"github.com/user/mp4mcap/pkg/adapters/promstats"
	"github.com/user/mp4mcap/pkg/config"
	"github.com/user/mp4mcap/pkg/mp4mcap"
	"github.com/user/mp4mcap/pkg/orchestrator"
	"github.com/user/mp4mcap/pkg/ports"
	"github.com/user/mp4mcap/pkg/summarizer"
)

var version = "dev"

// Flag categories, translated when the flags are built.
const (
	categoryIO        = "Input and Output"
	categoryRecords   = "Records"
	categoryTiming    = "Timing"
	categoryFormat    = "Output Format"
	categoryExecution = "Execution"
	categoryReports   = "Reports"
	categoryLogging   = "Logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.T("Error:"), err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mp4mcap",
		Usage:   l10n.T("Convert H.264 video in MP4 files to MCAP logs"),
		Version: version,
		Description: l10n.T("mp4mcap writes every compressed frame of the video track of each MP4 file " +
			"as a timestamped foxglove.CompressedVideo message into an MCAP file."),
		HideVersion: true,
		Flags:       convertFlags(),
		Action:      runConvert,
		Commands: []*cli.Command{
			{
				Name:        "convert",
				Usage:       l10n.T("Convert MP4 files to MCAP (default command)"),
				Description: l10n.T("Convert every MP4 file found in the input paths into one MCAP file each."),
				Flags:       convertFlags(),
				Action:      runConvert,
			},
			{
				Name:      "inspect",
				Usage:     l10n.T("Show the contents of an MCAP file"),
				ArgsUsage: "<file.mcap>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "messages",
						Usage: l10n.T("Print one line per message"),
					},
				},
				Action: runInspect,
			},
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, l10n.F("mp4mcap version %s", version))
					return nil
				},
			},
		},
	}
}

func convertFlags() []cli.Flag {
	return []cli.Flag{
		// Input and Output
		&cli.StringSliceFlag{
			Name:     "input-paths",
			Aliases:  []string{"i"},
			Usage:    l10n.T("MP4 file or directory to convert (repeatable, falls back to INPUT_PATHS)"),
			Category: l10n.T(categoryIO),
		},
		&cli.StringFlag{
			Name:     "output-dir",
			Aliases:  []string{"o"},
			Usage:    l10n.T("Directory for MCAP files (falls back to OUTPUT_DIR)"),
			Category: l10n.T(categoryIO),
		},
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    l10n.T("YAML configuration file"),
			Category: l10n.T(categoryIO),
		},

		// Records
		&cli.StringFlag{
			Name:     "topic",
			Usage:    l10n.T("Channel topic (falls back to TOPIC, default: /video/h264)"),
			Category: l10n.T(categoryRecords),
		},
		&cli.StringFlag{
			Name:     "frame-id",
			Usage:    l10n.T("Stream identifier written into every message (default: topic)"),
			Category: l10n.T(categoryRecords),
		},

		// Timing
		&cli.Int64Flag{
			Name:     "start-time-ns",
			Usage:    l10n.T("Start time in nanoseconds since the Unix epoch for streams without timestamps"),
			Category: l10n.T(categoryTiming),
		},
		&cli.Float64Flag{
			Name:     "default-fps",
			Usage:    l10n.T("Frame rate used when a stream reports none (default: 30)"),
			Category: l10n.T(categoryTiming),
		},

		// Output Format
		&cli.StringFlag{
			Name:     "payload-format",
			Usage:    l10n.T("Frame payload framing (avcc, annexb)"),
			Category: l10n.T(categoryFormat),
		},
		&cli.StringFlag{
			Name:     "compression",
			Usage:    l10n.T("MCAP chunk compression (zstd, lz4, none)"),
			Category: l10n.T(categoryFormat),
		},
		&cli.Int64Flag{
			Name:     "chunk-size",
			Usage:    l10n.T("MCAP chunk size in bytes"),
			Category: l10n.T(categoryFormat),
		},

		// Execution
		&cli.IntFlag{
			Name:     "jobs",
			Aliases:  []string{"j"},
			Usage:    l10n.T("Number of files converted in parallel"),
			Category: l10n.T(categoryExecution),
		},
		&cli.BoolFlag{
			Name:     "continue-on-error",
			Usage:    l10n.T("Keep converting after a file fails"),
			Category: l10n.T(categoryExecution),
		},
		&cli.BoolFlag{
			Name:     "count-frames",
			Usage:    l10n.T("Count frames before converting for exact progress"),
			Category: l10n.T(categoryExecution),
		},
		&cli.BoolFlag{
			Name:     "no-progress",
			Usage:    l10n.T("Disable progress bars"),
			Category: l10n.T(categoryExecution),
		},

		// Reports
		&cli.StringFlag{
			Name:     "summary",
			Usage:    l10n.T("Write a batch summary to file (.json or Markdown)"),
			Category: l10n.T(categoryReports),
		},
		&cli.StringFlag{
			Name:     "metrics-file",
			Usage:    l10n.T("Write Prometheus metrics to file"),
			Category: l10n.T(categoryReports),
		},

		// Logging
		&cli.StringFlag{
			Name:     "log-level",
			Aliases:  []string{"l"},
			Usage:    l10n.T("Log level (debug, info, warn, error)"),
			Category: l10n.T(categoryLogging),
		},
		&cli.StringFlag{
			Name:     "log-format",
			Usage:    l10n.T("Log format (console, text, json)"),
			Category: l10n.T(categoryLogging),
		},
		&cli.BoolFlag{
			Name:     "quiet",
			Aliases:  []string{"Q"},
			Usage:    l10n.T("Suppress all log output"),
			Category: l10n.T(categoryLogging),
		},
	}
}

// runConvert executes the convert command.
func runConvert(c *cli.Context) error {
	cfg, err := buildConfig(c, os.LookupEnv)
	if err != nil {
		return err
	}

	quiet := c.Bool("quiet")
	log, err := newLogger(cfg, quiet)
	if err != nil {
		return err
	}
	if path := c.String("config"); path != "" {
		log.Debug("Loaded config from %s", path)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create adapters
	var progress ports.ProgressFactory = progressbar.Noop{}
	if cfg.ShowProgress && !quiet {
		progress = progressbar.NewForTerminal()
	}
	var metrics ports.Metrics = promstats.Noop{}
	if cfg.MetricsFile != "" {
		metrics = promstats.New(cfg.MetricsFile)
	}

	orch := mp4mcap.NewOrchestrator(cfg.DemuxerOptions(), cfg.WriterOptions(), mp4mcap.Adapters{
		Logger:   log,
		Progress: progress,
		Metrics:  metrics,
	})

	// Run batch
	result, runErr := orch.Run(ctx, cfg.ToOrchestratorConfig())

	if cfg.SummaryPath != "" && result.Discovered > 0 {
		if err := writeSummary(cfg, result); err != nil {
			log.Warn("Failed to write summary: %v", err)
		} else {
			log.Info("Summary saved to %s", cfg.SummaryPath)
		}
	}
	if cfg.MetricsFile != "" {
		log.Info("Metrics saved to %s", cfg.MetricsFile)
	}

	if runErr != nil {
		// Failures were logged by the orchestrator unless quiet.
		message := ""
		if quiet {
			message = runErr.Error()
		}
		if errors.Is(runErr, context.Canceled) {
			return cli.Exit(message, 130)
		}
		return cli.Exit(message, 1)
	}
	return nil
}

// buildConfig layers flags over the config file, then the environment,
// then the defaults.
func buildConfig(c *cli.Context, lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("input-paths") {
		cfg.InputPaths = c.StringSlice("input-paths")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("topic") {
		cfg.Topic = c.String("topic")
		cfg.TopicSet = true
	}
	if c.IsSet("frame-id") {
		cfg.FrameID = c.String("frame-id")
	}
	if c.IsSet("start-time-ns") {
		start := c.Int64("start-time-ns")
		cfg.StartTimeNs = &start
	}
	if c.IsSet("default-fps") {
		cfg.DefaultFPS = c.Float64("default-fps")
	}
	if c.IsSet("payload-format") {
		cfg.PayloadFormat = c.String("payload-format")
	}
	if c.IsSet("compression") {
		cfg.Compression = c.String("compression")
	}
	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int64("chunk-size")
	}
	if c.IsSet("jobs") {
		cfg.Jobs = c.Int("jobs")
	}
	if c.IsSet("continue-on-error") {
		cfg.ContinueOnError = c.Bool("continue-on-error")
	}
	if c.IsSet("count-frames") {
		cfg.CountFrames = c.Bool("count-frames")
	}
	if c.Bool("no-progress") {
		cfg.ShowProgress = false
	}
	if c.IsSet("summary") {
		cfg.SummaryPath = c.String("summary")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	cfg.ApplyEnv(lookupEnv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger creates the logger selected by the log settings.
func newLogger(cfg config.Config, quiet bool) (ports.Logger, error) {
	if quiet {
		return logger.NewNoop(), nil
	}
	level := ports.ParseLogLevel(cfg.LogLevel)

	switch cfg.LogFormat {
	case config.LogFormatText, config.LogFormatJSON:
		format, err := logger.ParseFormat(cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		return logger.NewStructured(level, format, os.Stderr), nil
	default:
		return logger.NewConsole(level), nil
	}
}

// writeSummary writes the batch summary in the format chosen by the
// file extension.
func writeSummary(cfg config.Config, result orchestrator.RunResult) error {
	summary := summarizer.NewBuilder().
		WithRun(result).
		WithSettings(summarizer.Settings{
			Topic:         cfg.Topic,
			FrameID:       cfg.FrameID,
			StartTimeNs:   cfg.StartTimeNs,
			DefaultFPS:    cfg.DefaultFPS,
			PayloadFormat: string(cfg.DemuxerOptions().PayloadFormat),
			Compression:   string(cfg.WriterOptions().Compression),
			Jobs:          cfg.Jobs,
			FailurePolicy: string(cfg.FailurePolicy()),
		}).
		Build()

	writer := summarizer.NewWriter(summarizer.ForPath(cfg.SummaryPath), osfilesystem.New())
	return writer.Write(cfg.SummaryPath, summary)
}

// runInspect executes the inspect command.
func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("Exactly one MCAP file argument is required"), 2)
	}
	path := c.Args().First()

	info, err := mcaplog.Inspect(path)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, l10n.F("File: %s", path))
	fmt.Fprintln(w, l10n.F("Library: %s", info.Library))
	fmt.Fprintln(w, l10n.F("Messages: %d", info.MessageCount))
	if info.MessageCount > 0 {
		fmt.Fprintln(w, l10n.F("Start: %s (%d ns)", formatTime(info.StartTime), info.StartTime))
		fmt.Fprintln(w, l10n.F("End: %s (%d ns)", formatTime(info.EndTime), info.EndTime))
		fmt.Fprintln(w, l10n.F("Duration: %s", time.Duration(info.EndTime-info.StartTime)))
	}

	fmt.Fprintln(w, l10n.T("Topics:"))
	for _, t := range info.Topics {
		fmt.Fprintf(w, "  %s  %s/%s  %d\n", t.Topic, t.SchemaName, t.MessageEncoding, t.MessageCount)
	}

	if len(info.Metadata) > 0 {
		fmt.Fprintln(w, l10n.T("Metadata:"))
		for _, m := range info.Metadata {
			fmt.Fprintf(w, "  %s\n", m.Name)
			keys := make([]string, 0, len(m.Fields))
			for k := range m.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "    %s: %s\n", k, m.Fields[k])
			}
		}
	}

	if c.Bool("messages") {
		for _, m := range info.Messages {
			line := fmt.Sprintf("%d %s %d %dB", m.Sequence, m.Topic, m.LogTime, len(m.Data))
			if m.Frame != nil {
				line += fmt.Sprintf(" %s %s %dB", m.Frame.FrameID, m.Frame.Format, len(m.Frame.Data))
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func formatTime(ns uint64) string {
	return time.Unix(0, int64(ns)).UTC().Format(time.RFC3339Nano)
}
