package progressbar

import (
	"bytes"
	"strings"
	"testing"
)

func TestFactory_RendersDescriptionAndCount(t *testing.T) {
	var out bytes.Buffer
	p := New(&out).New("clip.mp4", 4)

	p.Add(2)
	p.Add(2)
	p.Finish()

	got := out.String()
	if !strings.Contains(got, "clip.mp4") {
		t.Errorf("expected description in output, got %q", got)
	}
	if !strings.Contains(got, "4/4") {
		t.Errorf("expected final count in output, got %q", got)
	}
}

func TestFactory_UnknownTotal(t *testing.T) {
	var out bytes.Buffer
	p := New(&out).New("clip.mp4", -1)

	p.Add(3)
	p.Finish()

	if !strings.Contains(out.String(), "clip.mp4") {
		t.Errorf("expected description in spinner output, got %q", out.String())
	}
}

func TestNoop(t *testing.T) {
	p := Noop{}.New("ignored", 10)
	p.Add(5)
	p.Finish()
}
