package bubble

import (
	"fmt"
	"strings"
	"time"

	"bmchat/media"
	"bmchat/playback"
	"bmchat/track"

	"github.com/charmbracelet/lipgloss"
)

const (
	border          = 1 // cells taken by the border on each side
	buttonCells     = 2 // button plus a space
	downloadCells   = 2 // space plus the download button
	videoTrackWidth = 40
	minTrackWidth   = 8
)

// layout is the geometry of the track, shared by View and the mouse hit test.
type layout struct {
	amps  []float64 // nil for video
	width int       // track width in cells
	rows  int
}

func (m Model) layout() layout {
	avail := 0
	if m.opts.MaxWidth > 0 {
		avail = m.opts.MaxWidth - 2*border - 2*m.opts.PaddingX - buttonCells
		if m.opts.ShowDownload {
			avail -= downloadCells
		}
		avail = max(avail, minTrackWidth)
	}

	if m.msg.Kind == media.Video {
		w := videoTrackWidth
		if avail > 0 {
			w = min(w, avail)
		}
		return layout{width: w, rows: 1}
	}

	amps := m.msg.Samples
	if len(amps) == 0 {
		amps = track.DefaultAmplitudes()
	}
	if avail > 0 && 2*len(amps) > avail {
		amps = track.Resample(amps, avail/2)
	}
	return layout{amps: amps, width: 2 * len(amps), rows: m.opts.WaveformRows}
}

func (m Model) contentOrigin() (int, int) {
	return m.originX + border + m.opts.PaddingX, m.originY + border + m.opts.PaddingY
}

func (m Model) buttonPos() (int, int) {
	return m.contentOrigin()
}

// TrackRect returns the screen rectangle of the track.
func (m Model) TrackRect() (x, y, w, h int) {
	l := m.layout()
	cx, cy := m.contentOrigin()
	return cx + buttonCells, cy, l.width, l.rows
}

func (m Model) downloadPos() (int, int) {
	x, y, w, _ := m.TrackRect()
	return x + w + 1, y
}

// Align is where a host should place the bubble: sent messages on the
// right, received ones on the left.
func (m Model) Align() lipgloss.Position {
	if m.sent {
		return lipgloss.Right
	}
	return lipgloss.Left
}

// View renders the bubble.
func (m Model) View() string {
	l := m.layout()
	c := m.opts.Colors

	buttonColor, borderColor := c.ReceivedButton, c.ReceivedBorder
	if m.sent {
		buttonColor, borderColor = c.SentButton, c.SentBorder
	}
	if m.focused {
		borderColor = buttonColor
	}

	button := lipgloss.NewStyle().Foreground(buttonColor).Bold(true).Render(m.buttonGlyph())
	button += " " + strings.Repeat("\n", l.rows-1)

	top := []string{button, m.trackView(l)}
	if m.opts.ShowDownload {
		top = append(top, " "+m.downloadGlyph())
	}
	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, top...)}
	lines = append(lines, m.infoLine(lipgloss.Width(lines[0])))

	muted := lipgloss.NewStyle().Foreground(c.Muted)
	bad := lipgloss.NewStyle().Foreground(c.Error)
	switch {
	case m.state == playback.Failed:
		lines = append(lines, bad.Render(fmt.Sprintf("Failed to load %s · r to retry", m.msg.Kind)))
	case m.dlErr != "":
		lines = append(lines, bad.Render("Download failed: "+m.dlErr))
	case m.saved != "" && m.opts.ShowDownload:
		lines = append(lines, muted.Render("Saved "+m.savedName()))
	}

	style := lipgloss.NewStyle().
		Padding(m.opts.PaddingY, m.opts.PaddingX).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor)
	if m.opts.CornerRadius > 0 {
		style = style.Border(lipgloss.RoundedBorder())
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if m.opts.MinWidth > 0 {
		inner := lipgloss.Width(content) + 2*m.opts.PaddingX
		style = style.Width(max(inner, m.opts.MinWidth-2*border))
	}
	if m.opts.MaxWidth > 0 {
		style = style.MaxWidth(m.opts.MaxWidth)
	}
	return style.Render(content)
}

func (m Model) buttonGlyph() string {
	switch m.state {
	case playback.Opening:
		return m.spin.View()
	case playback.Playing:
		return "⏸"
	case playback.Failed:
		return "⟳"
	}
	return "▶"
}

func (m Model) downloadGlyph() string {
	switch {
	case m.downloading:
		return m.spin.View()
	case m.saved != "":
		return lipgloss.NewStyle().Foreground(m.opts.Colors.WaveformActive).Render("✓")
	}
	return "⭳"
}

func (m Model) trackView(l layout) string {
	progress := m.snap.Progress()
	if l.amps == nil {
		return track.PaintProgress(l.width, progress, m.opts.progressColors())
	}
	rows := float64(l.rows)
	bars := track.Waveform(float64(l.width), rows, progress, l.amps, m.opts.waveColors())
	return track.PaintWaveform(bars, rows, l.rows)
}

// infoLine is "m:ss / m:ss" on the left and the creation time and status
// on the right, spread over width cells.
func (m Model) infoLine(width int) string {
	muted := lipgloss.NewStyle().Foreground(m.opts.Colors.Muted)
	times := formatDuration(m.snap.Position) + " / " + formatDuration(m.snap.Duration)
	if m.mixer != nil && m.volume != 0 {
		times += fmt.Sprintf(" · vol %+.1f", m.volume)
	}
	left := muted.Render(times)

	var right []string
	if m.opts.ShowTimestamp && !m.msg.CreatedAt.IsZero() {
		right = append(right, muted.Render(m.msg.CreatedAt.Local().Format("15:04")))
	}
	if m.opts.ShowStatus {
		right = append(right, m.statusGlyph())
	}
	if len(right) == 0 {
		return left
	}
	r := strings.Join(right, " ")
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(r), 1)
	return left + strings.Repeat(" ", gap) + r
}

func (m Model) statusGlyph() string {
	c := m.opts.Colors
	switch m.msg.Status {
	case media.Sending:
		return lipgloss.NewStyle().Foreground(c.Muted).Render("◷")
	case media.Delivered:
		return lipgloss.NewStyle().Foreground(c.Muted).Render("✓✓")
	case media.Seen:
		return lipgloss.NewStyle().Foreground(c.WaveformActive).Render("✓✓")
	case media.Failed:
		return lipgloss.NewStyle().Foreground(c.Error).Render("!")
	}
	return lipgloss.NewStyle().Foreground(c.Muted).Render("✓")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
