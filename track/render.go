// Package track draws the playback track of a bubble (waveform or progress
// bar) and maps pointer positions on it back to playback timestamps.
//
// Everything here is a pure function of its arguments.
package track

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultBars is the number of bars drawn when a message carries no samples.
const DefaultBars = 30

const (
	barFill      = 0.5  // share of a slot covered by its bar
	minBarHeight = 0.12 // share of the track height, keeps silent bars visible
)

// Block characters for one row of a bar, index 0 is empty.
const blockChars = " ▁▂▃▄▅▆▇█"

// Colors are the two colors a track is painted with.
type Colors struct {
	Active   lipgloss.Color
	Inactive lipgloss.Color
}

// Bar is one rectangle of a track in track coordinates (origin top left).
type Bar struct {
	X, Y          float64
	Width, Height float64
	Active        bool
	Color         lipgloss.Color
}

// Waveform lays out one bar per sample, or DefaultBars synthetic bars when
// samples is empty. A bar is active when its left edge lies before the
// progress position.
func Waveform(width, height, progress float64, samples []float64, c Colors) []Bar {
	amps := samples
	if len(amps) == 0 {
		amps = DefaultAmplitudes()
	}
	width, height = nonNegative(width), nonNegative(height)

	n := float64(len(amps))
	slot := width / n
	edge := clampUnit(progress) * width

	bars := make([]Bar, len(amps))
	for i, a := range amps {
		h := math.Max(clampUnit(a), minBarHeight) * height
		x := float64(i) * slot
		b := Bar{
			X:      x,
			Y:      (height - h) / 2,
			Width:  slot * barFill,
			Height: h,
			Active: x < edge,
			Color:  c.Inactive,
		}
		if b.Active {
			b.Color = c.Active
		}
		bars[i] = b
	}
	return bars
}

// Progress splits a filled track into its played and unplayed parts.
func Progress(width, height, progress float64, c Colors) (active, inactive Bar) {
	width, height = nonNegative(width), nonNegative(height)
	played := clampUnit(progress) * width
	active = Bar{Width: played, Height: height, Active: true, Color: c.Active}
	inactive = Bar{X: played, Width: width - played, Height: height, Color: c.Inactive}
	return active, inactive
}

// Resample reduces samples to at most n values, keeping the peak of each
// bucket. Shorter inputs are returned as is.
func Resample(samples []float64, n int) []float64 {
	if n <= 0 || len(samples) <= n {
		return samples
	}
	out := make([]float64, n)
	for i := range out {
		start := i * len(samples) / n
		end := (i + 1) * len(samples) / n
		peak := 0.0
		for _, s := range samples[start:end] {
			peak = math.Max(peak, math.Abs(s))
		}
		out[i] = peak
	}
	return out
}

// DefaultAmplitudes is a fixed smooth shape so sample-less messages look
// the same on every render.
func DefaultAmplitudes() []float64 {
	amps := make([]float64, DefaultBars)
	for i := range amps {
		x := float64(i)
		amps[i] = 0.55 + 0.35*math.Sin(x*0.6)*math.Cos(x*0.23)
	}
	return amps
}

// PaintWaveform draws bars laid out with Waveform for a track of the given
// height, one cell per bar followed by a one cell gap, over rows lines.
func PaintWaveform(bars []Bar, height float64, rows int) string {
	if rows < 1 {
		rows = 1
	}
	runes := []rune(blockChars)
	maxLevel := rows * 8

	levels := make([]int, len(bars))
	for i, b := range bars {
		if height > 0 {
			levels[i] = int(math.Round(b.Height / height * float64(maxLevel)))
		}
		levels[i] = min(max(levels[i], 1), maxLevel)
	}

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}
		base := (rows - 1 - row) * 8
		for i, b := range bars {
			fill := min(max(levels[i]-base, 0), 8)
			sb.WriteString(lipgloss.NewStyle().Foreground(b.Color).Render(string(runes[fill])))
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// PaintProgress draws a one line progress bar of width cells.
func PaintProgress(width int, progress float64, c Colors) string {
	if width < 1 {
		return ""
	}
	active, _ := Progress(float64(width), 1, progress, c)
	played := int(active.Width)

	var sb strings.Builder
	if played > 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(c.Active).Render(strings.Repeat("━", played)))
	}
	if played < width {
		sb.WriteString(lipgloss.NewStyle().Foreground(c.Inactive).Render(strings.Repeat("─", width-played)))
	}
	return sb.String()
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
