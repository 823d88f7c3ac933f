package main

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/boids"
)

// runReport is the summary printed after a run.
type runReport struct {
	Device  string
	Frames  uint64
	Elapsed time.Duration
	Stats   boids.Stats
	Memory  boids.MemoryStats
}

// framesPerSecond returns the submission rate, or 0 for an empty run.
func (r runReport) framesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

func (r runReport) write(w io.Writer, tag language.Tag) {
	p := message.NewPrinter(tag)
	p.Fprintf(w, "device:    %s\n", r.Device)
	p.Fprintf(w, "particles: %d\n", r.Stats.Count)
	p.Fprintf(w, "frames:    %d in %v (%.1f fps)\n", r.Frames, r.Elapsed.Round(time.Millisecond), r.framesPerSecond())
	p.Fprintf(w, "centroid:  (%.4f, %.4f)\n", r.Stats.CentroidX, r.Stats.CentroidY)
	p.Fprintf(w, "speed:     mean %.6f, stddev %.6f\n", r.Stats.MeanSpeed, r.Stats.SpeedStdDev)
	p.Fprintf(w, "extent:    %.4f\n", r.Stats.MaxAbsCoord)
	p.Fprintf(w, "gpu bytes: %d (peak %d, %d buffers)\n", r.Memory.UsedBytes, r.Memory.PeakBytes, r.Memory.BufferCount)
}
