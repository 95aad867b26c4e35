// Package progressbar reports per-job frame progress on the terminal using
// schollz/progressbar.
package progressbar

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/user/mp4mcap/pkg/ports"
)

// Factory creates terminal progress bars.
type Factory struct {
	out io.Writer
}

// New creates a Factory writing to out.
func New(out io.Writer) *Factory {
	return &Factory{out: out}
}

// NewForTerminal returns a bar factory on stderr when stderr is a terminal,
// and a no-op factory otherwise.
func NewForTerminal() ports.ProgressFactory {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return New(os.Stderr)
	}
	return Noop{}
}

// New creates a bar for one job. A negative total shows a spinner.
func (f *Factory) New(description string, total int) ports.Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(f.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(f.out)
		}),
	)
	return &Bar{bar: bar}
}

// Bar is one job's progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// Add advances the bar by n frames.
func (b *Bar) Add(n int) {
	_ = b.bar.Add(n)
}

// Finish completes the bar.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
}

// Noop is a ProgressFactory whose bars do nothing.
type Noop struct{}

// New returns a progress reporter that discards updates.
func (Noop) New(description string, total int) ports.Progress {
	return noopProgress{}
}

type noopProgress struct{}

func (noopProgress) Add(n int) {}
func (noopProgress) Finish()   {}

var (
	_ ports.ProgressFactory = (*Factory)(nil)
	_ ports.ProgressFactory = Noop{}
	_ ports.Progress        = (*Bar)(nil)
)
