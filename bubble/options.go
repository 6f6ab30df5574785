package bubble

import (
	"time"

	"bmchat/download"
	"bmchat/media"
	"bmchat/track"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Colors used by a bubble. Sent and received messages differ in their
// button and border colors only.
type Colors struct {
	SentButton       lipgloss.Color
	ReceivedButton   lipgloss.Color
	SentBorder       lipgloss.Color
	ReceivedBorder   lipgloss.Color
	WaveformActive   lipgloss.Color
	WaveformInactive lipgloss.Color
	ProgressActive   lipgloss.Color
	ProgressInactive lipgloss.Color
	Muted            lipgloss.Color
	Error            lipgloss.Color
}

// KeyMap holds the bindings a focused bubble reacts to.
type KeyMap struct {
	TogglePlay   key.Binding
	SeekForward  key.Binding
	SeekBackward key.Binding
	Download     key.Binding
	Retry        key.Binding
	VolumeUp     key.Binding
	VolumeDown   key.Binding
}

// DefaultKeyMap returns a set of default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePlay: key.NewBinding(
			key.WithKeys(" ", "space", "enter"),
			key.WithHelp("space", "play/pause"),
		),
		SeekForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "+5s"),
		),
		SeekBackward: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "-5s"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "louder"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "quieter"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePlay, k.SeekBackward, k.SeekForward, k.Download, k.Retry}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.VolumeDown, k.VolumeUp}}
}

// Options is everything a host can tune on a bubble.
type Options struct {
	Colors        Colors
	PaddingX      int
	PaddingY      int
	CornerRadius  int
	MinWidth      int
	MaxWidth      int
	WaveformRows  int
	ShowTimestamp bool
	ShowStatus    bool
	ShowDownload  bool
	Headers       map[string]string
	Keys          KeyMap
	SeekStep      time.Duration
	TickInterval  time.Duration

	// Playback backends.
	MPVBinary string
	Volume    float64

	// Download target and callbacks.
	Dirs            download.DirResolver
	Permission      download.Permission
	OnDownloaded    func(msg media.Message, path string)
	OnDownloadError func(msg media.Message, reason string)

	Logger zerolog.Logger
}

// DefaultOptions mirrors the defaults of the config file.
func DefaultOptions() Options {
	return Options{
		Colors: Colors{
			SentButton:       "#7AA2F7",
			ReceivedButton:   "#9ECE6A",
			SentBorder:       "#3D59A1",
			ReceivedBorder:   "#565F89",
			WaveformActive:   "#E0AF68",
			WaveformInactive: "#565F89",
			ProgressActive:   "#E0AF68",
			ProgressInactive: "#414868",
			Muted:            "#737AA2",
			Error:            "#F7768E",
		},
		PaddingX:      1,
		CornerRadius:  1,
		MinWidth:      30,
		MaxWidth:      72,
		WaveformRows:  1,
		ShowTimestamp: true,
		ShowStatus:    true,
		ShowDownload:  true,
		Keys:          DefaultKeyMap(),
		SeekStep:      5 * time.Second,
		MPVBinary:     "mpv",
		Dirs:          download.PlatformDirs{},
		Permission:    download.Granted{},
		Logger:        zerolog.Nop(),
	}
}

func (o Options) waveColors() track.Colors {
	return track.Colors{Active: o.Colors.WaveformActive, Inactive: o.Colors.WaveformInactive}
}

func (o Options) progressColors() track.Colors {
	return track.Colors{Active: o.Colors.ProgressActive, Inactive: o.Colors.ProgressInactive}
}

// headersFor merges the host headers with the message's own, the
// message winning on conflicts.
func (o Options) headersFor(msg media.Message) map[string]string {
	if len(o.Headers) == 0 && len(msg.Headers) == 0 {
		return nil
	}
	h := make(map[string]string, len(o.Headers)+len(msg.Headers))
	for k, v := range o.Headers {
		h[k] = v
	}
	for k, v := range msg.Headers {
		h[k] = v
	}
	return h
}
