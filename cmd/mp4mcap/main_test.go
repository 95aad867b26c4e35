package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/user/mp4mcap/pkg/config"
	"github.com/user/mp4mcap/pkg/mp4fixture"
)

// parseConfig runs buildConfig against the given arguments.
func parseConfig(t *testing.T, env map[string]string, args ...string) (config.Config, error) {
	t.Helper()

	var cfg config.Config
	var buildErr error
	app := &cli.App{
		Name:  "mp4mcap",
		Flags: convertFlags(),
		Action: func(c *cli.Context) error {
			cfg, buildErr = buildConfig(c, func(key string) (string, bool) {
				v, ok := env[key]
				return v, ok
			})
			return nil
		},
	}
	if err := app.Run(append([]string{"mp4mcap"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return cfg, buildErr
}

func TestBuildConfig_Flags(t *testing.T) {
	cfg, err := parseConfig(t, nil,
		"-i", "a.mp4", "-i", "videos",
		"-o", "out",
		"--topic", "/cam/front",
		"--start-time-ns", "0",
		"--compression", "lz4",
		"-j", "3",
		"--continue-on-error",
		"--no-progress",
	)
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if len(cfg.InputPaths) != 2 || cfg.InputPaths[1] != "videos" {
		t.Errorf("unexpected input paths: %v", cfg.InputPaths)
	}
	if cfg.OutputDir != "out" || cfg.Topic != "/cam/front" {
		t.Errorf("unexpected output/topic: %q %q", cfg.OutputDir, cfg.Topic)
	}
	if cfg.StartTimeNs == nil || *cfg.StartTimeNs != 0 {
		t.Error("expected explicit zero start time")
	}
	if cfg.Compression != "lz4" || cfg.Jobs != 3 {
		t.Errorf("unexpected compression/jobs: %q %d", cfg.Compression, cfg.Jobs)
	}
	if !cfg.ContinueOnError || cfg.ShowProgress {
		t.Errorf("unexpected execution settings: %+v", cfg)
	}
}

func TestBuildConfig_Environment(t *testing.T) {
	env := map[string]string{
		config.EnvInputPaths: "a.mp4" + string(os.PathListSeparator) + "b.mp4",
		config.EnvOutputDir:  "/env/out",
		config.EnvTopic:      "/env/topic",
	}

	cfg, err := parseConfig(t, env, "-o", "/flag/out")
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if len(cfg.InputPaths) != 2 {
		t.Errorf("expected inputs from environment, got %v", cfg.InputPaths)
	}
	if cfg.OutputDir != "/flag/out" {
		t.Errorf("expected flag to win over environment, got %q", cfg.OutputDir)
	}
	if cfg.Topic != "/env/topic" {
		t.Errorf("expected topic from environment, got %q", cfg.Topic)
	}
}

func TestBuildConfig_ExplicitDefaultTopic(t *testing.T) {
	env := map[string]string{config.EnvTopic: "/cam/front"}

	cfg, err := parseConfig(t, env, "-i", "a.mp4", "-o", "out", "--topic", "/video/h264")
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Topic != "/video/h264" {
		t.Errorf("expected --topic to win over environment, got %q", cfg.Topic)
	}
}

func TestBuildConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mp4mcap.yaml")
	content := "input_paths: [in]\noutput_dir: out\njobs: 2\ncompression: none\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseConfig(t, nil, "-c", path, "-j", "4")
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if cfg.OutputDir != "out" || cfg.Compression != "none" {
		t.Errorf("expected values from file, got %+v", cfg)
	}
	if cfg.Jobs != 4 {
		t.Errorf("expected flag to win over file, got %d", cfg.Jobs)
	}
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing inputs", []string{"-o", "out"}},
		{"missing output", []string{"-i", "a.mp4"}},
		{"bad compression", []string{"-i", "a.mp4", "-o", "out", "--compression", "gzip"}},
		{"bad jobs", []string{"-i", "a.mp4", "-o", "out", "-j", "0"}},
		{"missing config file", []string{"-c", "/nonexistent/mp4mcap.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseConfig(t, nil, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApp_ConvertAndInspect(t *testing.T) {
	dir := t.TempDir()
	if err := mp4fixture.WriteFile(filepath.Join(dir, "in", "front.mp4"), mp4fixture.Options{
		Timescale: 1000,
		Samples:   mp4fixture.Frames(3, 40),
	}); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	summaryPath := filepath.Join(dir, "summary.json")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"mp4mcap", "convert",
		"-i", filepath.Join(dir, "in"),
		"-o", outDir,
		"--topic", "/cam/front",
		"--summary", summaryPath,
		"--quiet",
	})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("expected summary file: %v", err)
	}
	var summary map[string]interface{}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	totals := summary["totals"].(map[string]interface{})
	if totals["succeeded"].(float64) != 1 || totals["frames"].(float64) != 3 {
		t.Errorf("unexpected totals: %v", totals)
	}

	out := &bytes.Buffer{}
	app = newApp()
	app.Writer = out
	app.ExitErrHandler = func(*cli.Context, error) {}

	if err := app.Run([]string{"mp4mcap", "inspect", "--messages", filepath.Join(outDir, "front.mcap")}); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	text := out.String()
	checks := []string{
		"Messages: 3",
		"/cam/front  foxglove.CompressedVideo/protobuf  3",
		"Duration: 80ms",
		"input: front.mp4",
		" h264 ",
	}
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected inspect output to contain %q\n%s", check, text)
		}
	}
}

func TestApp_QuietFailureReportsError(t *testing.T) {
	dir := t.TempDir()
	inDir := filepath.Join(dir, "in")
	if err := os.MkdirAll(inDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "broken.mp4"), []byte("not an mp4 file"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, quiet := range []bool{true, false} {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		app.ErrWriter = &bytes.Buffer{}
		app.ExitErrHandler = func(*cli.Context, error) {}

		args := []string{"mp4mcap", "convert", "-i", inDir, "-o", filepath.Join(dir, "out"), "--no-progress"}
		if quiet {
			args = append(args, "--quiet")
		} else {
			args = append(args, "--log-level", "error")
		}

		err := app.Run(args)
		coder, ok := err.(cli.ExitCoder)
		if !ok || coder.ExitCode() != 1 {
			t.Fatalf("quiet=%v: expected exit code 1, got %v", quiet, err)
		}
		if quiet && !strings.Contains(err.Error(), "broken.mp4") {
			t.Errorf("expected the failure in the exit message, got %q", err.Error())
		}
		if !quiet && err.Error() != "" {
			t.Errorf("expected logged failures to leave the exit message empty, got %q", err.Error())
		}
	}
}

func TestApp_InspectRequiresOneFile(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"mp4mcap", "inspect"})
	if err == nil {
		t.Fatal("expected an error without a file argument")
	}
	if coder, ok := err.(cli.ExitCoder); !ok || coder.ExitCode() != 2 {
		t.Errorf("expected exit code 2, got %v", err)
	}
}

func TestApp_Version(t *testing.T) {
	out := &bytes.Buffer{}
	app := newApp()
	app.Writer = out

	if err := app.Run([]string{"mp4mcap", "version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "mp4mcap version dev") {
		t.Errorf("unexpected version output %q", out.String())
	}
}
