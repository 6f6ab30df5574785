package config

import (
	"time"

	"bmchat/bubble"
	"bmchat/download"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// BubbleOptions turns the file settings into the options every bubble of
// the program is created with. Download callbacks are left to the caller.
func (c *Config) BubbleOptions(log zerolog.Logger) bubble.Options {
	opts := bubble.DefaultOptions()

	opts.Colors = bubble.Colors{
		SentButton:       lipgloss.Color(c.Colors.SentButton),
		ReceivedButton:   lipgloss.Color(c.Colors.ReceivedButton),
		SentBorder:       lipgloss.Color(c.Colors.SentBorder),
		ReceivedBorder:   lipgloss.Color(c.Colors.ReceivedBorder),
		WaveformActive:   lipgloss.Color(c.Colors.WaveformActive),
		WaveformInactive: lipgloss.Color(c.Colors.WaveformInactive),
		ProgressActive:   lipgloss.Color(c.Colors.ProgressActive),
		ProgressInactive: lipgloss.Color(c.Colors.ProgressInactive),
		Muted:            lipgloss.Color(c.Colors.Muted),
		Error:            lipgloss.Color(c.Colors.Error),
	}

	b := c.Bubble
	opts.PaddingX, opts.PaddingY = b.PaddingX, b.PaddingY
	opts.CornerRadius = b.CornerRadius
	opts.MinWidth, opts.MaxWidth = b.MinWidth, b.MaxWidth
	opts.WaveformRows = b.WaveformRows
	opts.ShowTimestamp = b.ShowTimestamp
	opts.ShowStatus = b.ShowStatus
	opts.ShowDownload = b.ShowDownload

	opts.Headers = c.Headers
	opts.Keys = c.Keymap.BubbleKeys()
	opts.TickInterval = time.Duration(c.App.TickMillis) * time.Millisecond
	opts.MPVBinary = c.App.MPV
	opts.Volume = c.App.Volume

	dirs := download.PlatformDirs{Override: c.App.DownloadDir}
	opts.Dirs = dirs
	if c.App.CheckWritable {
		opts.Permission = download.WritableDir{Dir: dirs}
	}
	opts.Logger = log
	return opts
}

// BubbleKeys builds the bindings a focused bubble reacts to.
func (k Keymap) BubbleKeys() bubble.KeyMap {
	return bubble.KeyMap{
		TogglePlay:   binding(k.TogglePlay, "play/pause"),
		SeekForward:  binding(k.SeekForward, "forward"),
		SeekBackward: binding(k.SeekBackward, "back"),
		Download:     binding(k.Download, "download"),
		Retry:        binding(k.Retry, "retry"),
		VolumeUp:     binding(k.VolumeUp, "louder"),
		VolumeDown:   binding(k.VolumeDown, "quieter"),
	}
}

func binding(k Key, help string) key.Binding {
	label := ""
	if len(k) > 0 {
		label = k[0]
	}
	return key.NewBinding(key.WithKeys(k.Keys()...), key.WithHelp(label, help))
}

// Binding builds a binding for the program level keys.
func (k Key) Binding(help string) key.Binding {
	return binding(k, help)
}
