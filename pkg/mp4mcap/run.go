package mp4mcap

import (
	"context"

	"github.com/user/mp4mcap/pkg/adapters/logger"
	"github.com/user/mp4mcap/pkg/adapters/mcaplog"
	"github.com/user/mp4mcap/pkg/adapters/mp4demuxer"
	"github.com/user/mp4mcap/pkg/adapters/osfilesystem"
	"github.com/user/mp4mcap/pkg/adapters/progressbar"
	"github.com/user/mp4mcap/pkg/adapters/promstats"
	"github.com/user/mp4mcap/pkg/orchestrator"
	"github.com/user/mp4mcap/pkg/ports"
	"github.com/user/mp4mcap/pkg/stages/convert"
	"github.com/user/mp4mcap/pkg/stages/discover"
)

// Adapters holds the replaceable side-effect adapters of a batch.
// Nil fields get silent defaults.
type Adapters struct {
	Logger   ports.Logger
	Progress ports.ProgressFactory
	Metrics  ports.Metrics
}

func (a Adapters) withDefaults() Adapters {
	if a.Logger == nil {
		a.Logger = logger.NewNoop()
	}
	if a.Progress == nil {
		a.Progress = progressbar.Noop{}
	}
	if a.Metrics == nil {
		a.Metrics = promstats.Noop{}
	}
	return a
}

// NewOrchestrator wires the MP4 reader, the MCAP writer and the OS file
// system into an orchestrator.
func NewOrchestrator(demux mp4demuxer.Options, writer mcaplog.Options, adapters Adapters) *orchestrator.Orchestrator {
	a := adapters.withDefaults()
	fs := osfilesystem.New()

	discoverStage := discover.New(fs, a.Logger)
	convertStage := convert.New(
		mp4demuxer.New(demux),
		mcaplog.NewFactory(writer),
		a.Progress,
		a.Logger,
	)

	return orchestrator.New(discoverStage, convertStage, fs, a.Metrics, a.Logger)
}

// Run converts every MP4 file found under inputPaths into outputDir.
func Run(ctx context.Context, cfg Config, inputPaths []string, outputDir string, adapters Adapters) (orchestrator.RunResult, error) {
	orch := NewOrchestrator(cfg.DemuxerOptions(), cfg.WriterOptions(), adapters)
	return orch.Run(ctx, cfg.ToOrchestratorConfig(inputPaths, outputDir))
}
