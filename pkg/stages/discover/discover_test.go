package discover

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/mp4mcap/pkg/mocks"
	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

func p(parts ...string) string {
	return filepath.Join(append([]string{string(filepath.Separator)}, parts...)...)
}

func newFS(files ...string) *mocks.FileSystem {
	fs := mocks.NewFileSystem()
	for _, f := range files {
		fs.AddFile(f, []byte("x"))
	}
	return fs
}

func inputPaths(jobs []pipeline.ConversionJob) []string {
	var paths []string
	for _, j := range jobs {
		paths = append(paths, j.InputPath)
	}
	return paths
}

func TestExecute_Directory(t *testing.T) {
	fs := newFS(
		p("videos", "b.mp4"),
		p("videos", "a.MP4"),
		p("videos", "notes.txt"),
		p("videos", "sub", "c.mp4"),
		p("videos", "sub", "clip.mp4.bak"),
	)
	stage := New(fs, mocks.NewLogger())

	result, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths:     []string{p("videos")},
		OutputDir: p("out"),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{p("videos", "a.MP4"), p("videos", "b.mp4"), p("videos", "sub", "c.mp4")}
	if got := inputPaths(result.Jobs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	job := result.Jobs[0]
	if job.OutputPath != p("out", "a.mcap") {
		t.Errorf("expected output %s, got %s", p("out", "a.mcap"), job.OutputPath)
	}
	if job.Topic != pipeline.DefaultTopic {
		t.Errorf("expected default topic, got %q", job.Topic)
	}
	if job.FrameID != pipeline.DefaultTopic {
		t.Errorf("expected frame id to default to topic, got %q", job.FrameID)
	}
}

func TestExecute_FilesAndDirectoriesKeepInputOrder(t *testing.T) {
	fs := newFS(
		p("z", "late.mp4"),
		p("a", "one.mp4"),
		p("a", "two.mp4"),
		p("clips", "movie.mov"),
	)
	stage := New(fs, mocks.NewLogger())

	result, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths:     []string{p("z", "late.mp4"), p("clips", "movie.mov"), p("a")},
		OutputDir: p("out"),
		Topic:     "/camera/front",
		FrameID:   "front",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{p("z", "late.mp4"), p("a", "one.mp4"), p("a", "two.mp4")}
	if got := inputPaths(result.Jobs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	for _, job := range result.Jobs {
		if job.Topic != "/camera/front" || job.FrameID != "front" {
			t.Errorf("unexpected topic/frame id: %+v", job)
		}
	}
}

func TestExecute_Deduplicates(t *testing.T) {
	fs := newFS(p("v", "a.mp4"))
	stage := New(fs, mocks.NewLogger())

	result, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths:     []string{p("v"), p("v", "a.mp4"), p("v", ".", "a.mp4")},
		OutputDir: p("out"),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(result.Jobs))
	}
}

func TestExecute_DuplicateOutputWarns(t *testing.T) {
	fs := newFS(p("x", "clip.mp4"), p("y", "clip.mp4"))
	log := mocks.NewLogger()
	stage := New(fs, log)

	result, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths:     []string{p("x"), p("y")},
		OutputDir: p("out"),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(result.Jobs))
	}
	if result.Jobs[0].OutputPath != result.Jobs[1].OutputPath {
		t.Error("expected both jobs to map to the same output")
	}

	warnings := log.EntriesAt(ports.LevelWarn)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Component != "discover" {
		t.Errorf("expected discover component, got %q", warnings[0].Component)
	}
}

func TestExecute_NoInputFound(t *testing.T) {
	fs := newFS(p("docs", "readme.txt"))
	stage := New(fs, mocks.NewLogger())

	tests := [][]string{
		{p("docs")},
		{p("docs", "readme.txt")},
		{},
		{"", "  "},
	}
	for _, paths := range tests {
		_, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
			Paths:     paths,
			OutputDir: p("out"),
		})
		if !errors.Is(err, pipeline.ErrNoInputFound) {
			t.Errorf("paths %v: expected ErrNoInputFound, got %v", paths, err)
		}
	}
}

func TestExecute_MissingPath(t *testing.T) {
	stage := New(newFS(), mocks.NewLogger())

	_, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths:     []string{p("missing.mp4")},
		OutputDir: p("out"),
	})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}

func TestExecute_NoOutputDir(t *testing.T) {
	stage := New(newFS(p("a.mp4")), mocks.NewLogger())

	_, err := stage.Execute(context.Background(), pipeline.DiscoverInput{
		Paths: []string{p("a.mp4")},
	})
	if !errors.Is(err, pipeline.ErrNoOutputDir) {
		t.Errorf("expected ErrNoOutputDir, got %v", err)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	stage := New(newFS(p("a.mp4")), mocks.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stage.Execute(ctx, pipeline.DiscoverInput{
		Paths:     []string{p("a.mp4")},
		OutputDir: p("out"),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	tests := map[string]string{
		"~":              home,
		"~/videos/a.mp4": filepath.Join(home, "videos", "a.mp4"),
		"/abs/a.mp4":     "/abs/a.mp4",
		"rel/~/a.mp4":    "rel/~/a.mp4",
		"~other/a.mp4":   "~other/a.mp4",
	}
	for in, want := range tests {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		dir, in, want string
	}{
		{"out", "videos/clip.mp4", filepath.Join("out", "clip.mcap")},
		{"out", "videos/CLIP.MP4", filepath.Join("out", "CLIP.mcap")},
		{"out", "videos/my.trip.mp4", filepath.Join("out", "my.trip.mcap")},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.dir, tt.in); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.dir, tt.in, got, tt.want)
		}
	}
}
