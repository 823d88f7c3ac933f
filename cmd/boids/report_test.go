package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/gogpu/boids"
)

func TestRunReport(t *testing.T) {
	r := runReport{
		Device:  "test adapter",
		Frames:  1200,
		Elapsed: 2 * time.Second,
		Stats:   boids.Stats{Count: 16384, MeanSpeed: 0.0009},
		Memory:  boids.MemoryStats{UsedBytes: 1048576, PeakBytes: 2097152, BufferCount: 8},
	}
	if got := r.framesPerSecond(); got != 600 {
		t.Errorf("framesPerSecond = %v, want 600", got)
	}

	var buf bytes.Buffer
	r.write(&buf, language.English)
	out := buf.String()
	for _, want := range []string{
		"test adapter",
		"16,384",
		"1,200 in 2s",
		"600.0 fps",
		"1,048,576",
		"8 buffers",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunReportEmpty(t *testing.T) {
	if got := (runReport{}).framesPerSecond(); got != 0 {
		t.Errorf("framesPerSecond of empty run = %v, want 0", got)
	}
}
