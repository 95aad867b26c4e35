// Package discover implements the input discovery stage: it expands the
// configured input paths into one conversion job per MP4 file.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

// Stage resolves input paths to conversion jobs.
type Stage struct {
	fs     ports.FileSystem
	logger ports.Logger
}

// New creates a new discover stage.
func New(fs ports.FileSystem, logger ports.Logger) *Stage {
	return &Stage{
		fs:     fs,
		logger: logger.WithComponent("discover"),
	}
}

// Execute walks every input path. Directories are searched recursively for
// files with the MP4 extension (any case); file paths are kept when their
// extension matches. Jobs are ordered by input path, then lexically within
// each directory. A file reached through several inputs yields one job.
func (s *Stage) Execute(ctx context.Context, input pipeline.DiscoverInput) (pipeline.DiscoverResult, error) {
	var result pipeline.DiscoverResult

	if input.OutputDir == "" {
		return result, pipeline.ErrNoOutputDir
	}
	outputDir, err := ExpandHome(input.OutputDir)
	if err != nil {
		return result, err
	}

	topic := input.Topic
	if topic == "" {
		topic = pipeline.DefaultTopic
	}
	frameID := input.FrameID
	if frameID == "" {
		frameID = topic
	}

	seen := make(map[string]bool)
	outputs := make(map[string]string)

	for _, raw := range input.Paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}

		path, err := ExpandHome(raw)
		if err != nil {
			return result, err
		}
		path = filepath.Clean(path)

		files, err := s.resolve(path)
		if err != nil {
			return result, err
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true

			out := OutputPath(outputDir, file)
			if prev, ok := outputs[out]; ok {
				s.logger.Warn("Output %s is produced by both %s and %s", out, prev, file)
			}
			outputs[out] = file

			result.Jobs = append(result.Jobs, pipeline.ConversionJob{
				InputPath:  file,
				OutputPath: out,
				Topic:      topic,
				FrameID:    frameID,
			})
		}
	}

	if len(result.Jobs) == 0 {
		return result, fmt.Errorf("%w in %s", pipeline.ErrNoInputFound, strings.Join(input.Paths, ", "))
	}

	s.logger.Debug("Discovered %d input files", len(result.Jobs))
	return result, nil
}

// resolve returns the MP4 files reachable from path.
func (s *Stage) resolve(path string) ([]string, error) {
	isDir, err := s.fs.IsDir(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}

	if !isDir {
		if !HasInputExtension(path) {
			s.logger.Debug("Ignoring %s", path)
			return nil, nil
		}
		return []string{path}, nil
	}

	s.logger.Debug("Scanning %s", path)
	all, err := s.fs.ListFiles(path)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	var files []string
	for _, f := range all {
		if HasInputExtension(f) {
			files = append(files, filepath.Clean(f))
		}
	}
	sort.Strings(files)
	return files, nil
}

// HasInputExtension reports whether path ends in .mp4, ignoring case.
func HasInputExtension(path string) bool {
	return strings.EqualFold(filepath.Ext(path), pipeline.InputExtension)
}

// OutputPath maps an input file to <outputDir>/<stem>.mcap.
func OutputPath(outputDir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+pipeline.OutputExtension)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

var _ pipeline.Stage[pipeline.DiscoverInput, pipeline.DiscoverResult] = (*Stage)(nil)
