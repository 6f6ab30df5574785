package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bmchat", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.UserID != "me" || cfg.Bubble.MaxWidth != 72 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.App, cfg.Bubble)
	}
	if !cfg.App.MPRIS || len(cfg.Keymap.Downloads) == 0 || len(cfg.Keymap.VolumeUp) == 0 {
		t.Errorf("defaults lack media keys or panel bindings: %+v", cfg.App)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	for _, want := range []string{"[app]", "[bubble]", "[colors]", "[keymap]", "waveform_active", "mpris = true"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("default file lacks %q", want)
		}
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reloading defaults: %v", err)
	}
	if again.Colors != cfg.Colors || again.Bubble != cfg.Bubble {
		t.Error("round trip through the default file changed settings")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
user_id = "alice"
tick_ms = 50

[bubble]
waveform_rows = 2
show_download = false

[colors]
sent_button = "212"

[keymap]
TogglePlay = "p"
Download = ["s", "ctrl+s"]

[headers]
Authorization = "Bearer token"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.UserID != "alice" || cfg.App.TickMillis != 50 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.App.MPV != "mpv" {
		t.Errorf("missing key lost its default: mpv = %q", cfg.App.MPV)
	}
	if cfg.Bubble.WaveformRows != 2 || cfg.Bubble.ShowDownload {
		t.Errorf("bubble = %+v", cfg.Bubble)
	}
	if cfg.Colors.SentButton != "212" || cfg.Colors.Muted != "#737AA2" {
		t.Errorf("colors = %+v", cfg.Colors)
	}
	if len(cfg.Keymap.TogglePlay) != 1 || cfg.Keymap.TogglePlay[0] != "p" {
		t.Errorf("TogglePlay = %v", cfg.Keymap.TogglePlay)
	}
	if len(cfg.Keymap.Download) != 2 {
		t.Errorf("Download = %v", cfg.Keymap.Download)
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Errorf("headers = %v", cfg.Headers)
	}

	opts := cfg.BubbleOptions(zerolog.Nop())
	if opts.TickInterval != 50*time.Millisecond || opts.WaveformRows != 2 || opts.ShowDownload {
		t.Errorf("options = %+v", opts)
	}
	if !key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}, opts.Keys.TogglePlay) {
		t.Error("p does not toggle playback")
	}
	if key.Matches(tea.KeyMsg{Type: tea.KeyEnter}, opts.Keys.TogglePlay) {
		t.Error("enter still toggles playback after override")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[app]\nuser_id = \"alice\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BMCHAT_USER_ID", "carol")
	t.Setenv("BMCHAT_DOWNLOAD_DIR", "/tmp/bmchat-downloads")
	t.Setenv("BMCHAT_VOLUME", "-1.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.UserID != "carol" {
		t.Errorf("user_id = %q, want env value", cfg.App.UserID)
	}
	if cfg.App.DownloadDir != "/tmp/bmchat-downloads" || cfg.App.Volume != -1.5 {
		t.Errorf("app = %+v", cfg.App)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad color", func(c *Config) { c.Colors.Error = "red" }, "[colors] error"},
		{"ansi out of range", func(c *Config) { c.Colors.Muted = "256" }, "[colors] muted"},
		{"short hex", func(c *Config) { c.Colors.Muted = "#abc" }, ""},
		{"min over max", func(c *Config) { c.Bubble.MinWidth = 80 }, "min_width"},
		{"negative padding", func(c *Config) { c.Bubble.PaddingX = -1 }, "negative"},
		{"rows", func(c *Config) { c.Bubble.WaveformRows = 5 }, "waveform_rows"},
		{"tick", func(c *Config) { c.App.TickMillis = -1 }, "tick_ms"},
		{"volume", func(c *Config) { c.App.Volume = 3 }, "volume"},
		{"volume conflict", func(c *Config) { c.Keymap.VolumeDown = Key{"="} }, "key conflict"},
		{"conflict", func(c *Config) { c.Keymap.Retry = Key{"d"} }, "key conflict"},
		{"space spellings conflict", func(c *Config) { c.Keymap.Download = Key{" "} }, "key conflict"},
		{"empty binding", func(c *Config) { c.Keymap.Quit = Key{} }, "no key assigned"},
		{"blank key", func(c *Config) { c.Keymap.Quit = Key{"  "} }, "empty key"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestKeyNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"space", " "},
		{" ", " "},
		{"Escape", "esc"},
		{"ArrowLeft", "left"},
		{"return", "enter"},
		{"ctrl+s", "ctrl+s"},
	}
	for _, tc := range tests {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	got := Key{"space", "enter"}.Keys()
	want := []string{" ", "space", "enter"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() = %q, want %q", got, want)
	}
}
