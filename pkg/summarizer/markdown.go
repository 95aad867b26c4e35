package summarizer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// MarkdownFormatter renders a Summary as a Markdown report. Labels are
// translated with l10n.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Conversion Summary"))
	fmt.Fprintf(&b, "- %s: `%s`\n", l10n.T("Run"), s.RunID)
	fmt.Fprintf(&b, "- %s: %s\n", l10n.T("Generated"), s.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- %s: %s\n\n", l10n.T("Elapsed"), formatMs(s.ElapsedMs))

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Totals"))
	writeTableHeader(&b, l10n.T("Item"), l10n.T("Value"))
	writeRow(&b, l10n.T("Files Found"), fmt.Sprint(s.Totals.Discovered))
	writeRow(&b, l10n.T("Succeeded"), fmt.Sprint(s.Totals.Succeeded))
	writeRow(&b, l10n.T("Failed"), fmt.Sprint(s.Totals.Failed))
	writeRow(&b, l10n.T("Frames"), fmt.Sprint(s.Totals.Frames))
	writeRow(&b, l10n.T("Skipped Packets"), fmt.Sprint(s.Totals.SkippedPackets))
	writeRow(&b, l10n.T("Payload"), formatBytes(s.Totals.Bytes))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Settings"))
	writeTableHeader(&b, l10n.T("Item"), l10n.T("Value"))
	writeRow(&b, l10n.T("Topic"), "`"+s.Settings.Topic+"`")
	frameID := s.Settings.FrameID
	if frameID == "" {
		frameID = s.Settings.Topic
	}
	writeRow(&b, l10n.T("Frame ID"), "`"+frameID+"`")
	if s.Settings.StartTimeNs != nil {
		writeRow(&b, l10n.T("Start Time"), fmt.Sprintf("%d ns", *s.Settings.StartTimeNs))
	} else {
		writeRow(&b, l10n.T("Start Time"), l10n.T("from stream"))
	}
	writeRow(&b, l10n.T("Default FPS"), fmt.Sprintf("%g", s.Settings.DefaultFPS))
	writeRow(&b, l10n.T("Payload Format"), s.Settings.PayloadFormat)
	writeRow(&b, l10n.T("Compression"), s.Settings.Compression)
	writeRow(&b, l10n.T("Jobs"), fmt.Sprint(s.Settings.Jobs))
	writeRow(&b, l10n.T("Failure Policy"), s.Settings.FailurePolicy)
	b.WriteString("\n")

	if len(s.Jobs) == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Files"))
	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
		l10n.T("Input"), l10n.T("Output"), l10n.T("Frames"), l10n.T("Skipped"),
		l10n.T("FPS"), l10n.T("Duration"), l10n.T("Elapsed"), l10n.T("Status"))
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---|\n")
	for _, j := range s.Jobs {
		status := l10n.T("ok")
		if j.Failed() {
			status = l10n.T("failed")
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s | %s | %s |\n",
			filepath.Base(j.Input),
			filepath.Base(j.Output),
			j.Frames,
			j.SkippedPackets,
			formatFPS(j.FrameRate),
			formatSpan(j),
			formatMs(j.ElapsedMs),
			status,
		)
	}

	var failed []JobSummary
	for _, j := range s.Jobs {
		if j.Failed() {
			failed = append(failed, j)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Errors"))
		for _, j := range failed {
			fmt.Fprintf(&b, "- `%s`: %s\n", j.Input, j.Error)
		}
	}

	return b.String()
}

func writeTableHeader(b *strings.Builder, cols ...string) {
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString(strings.Repeat("|---", len(cols)) + "|\n")
}

func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", label, value)
}

// formatBytes formats a byte count in B, KB or MB.
func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return fmt.Sprintf("%.2f s", float64(ms)/1000)
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", fps)
}

// formatSpan is the time between the first and last record.
func formatSpan(j JobSummary) string {
	if j.Frames == 0 {
		return "-"
	}
	span := time.Duration(j.LastTimestampNs - j.FirstTimestampNs)
	return fmt.Sprintf("%.3f s", span.Seconds())
}

var _ Formatter = (*MarkdownFormatter)(nil)
