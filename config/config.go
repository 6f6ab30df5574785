// Package config loads the host-facing settings of the bubbles from
// ~/.config/bmchat/config.toml, with BMCHAT_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"bmchat/bubble"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BMCHAT_"

// Key is a single key or a list of keys in the TOML file.
type Key []string

// UnmarshalTOML allows the Key type to be parsed from either a string or a list of strings.
func (k *Key) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*k = Key{v}
		return nil
	case []any:
		keys := make(Key, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("key must be a string or a list of strings")
			}
			keys = append(keys, s)
		}
		*k = keys
		return nil
	}
	return fmt.Errorf("key must be a string or a list of strings")
}

// Config holds the application's configuration, loaded from a TOML file.
type Config struct {
	App     AppConfig         `toml:"app"`
	Bubble  BubbleConfig      `toml:"bubble"`
	Colors  ColorConfig       `toml:"colors"`
	Keymap  Keymap            `toml:"keymap"`
	Headers map[string]string `toml:"headers"`
}

// AppConfig covers everything outside a single bubble.
type AppConfig struct {
	UserID          string  `toml:"user_id" env:"USER_ID"`
	DownloadDir     string  `toml:"download_dir" env:"DOWNLOAD_DIR"`
	CheckWritable   bool    `toml:"check_writable" env:"CHECK_WRITABLE"`
	History         string  `toml:"history" env:"HISTORY"`
	RememberHistory bool    `toml:"remember_history" env:"REMEMBER_HISTORY"`
	Notifications   bool    `toml:"notifications" env:"NOTIFICATIONS"`
	MPRIS           bool    `toml:"mpris" env:"MPRIS"`
	LogFile         string  `toml:"log_file" env:"LOG_FILE"`
	LogLevel        string  `toml:"log_level" env:"LOG_LEVEL"`
	MPV             string  `toml:"mpv" env:"MPV"`
	TickMillis      int     `toml:"tick_ms" env:"TICK_MS"`
	Volume          float64 `toml:"volume" env:"VOLUME"`
}

// BubbleConfig is the layout of a bubble.
type BubbleConfig struct {
	PaddingX      int  `toml:"padding_x"`
	PaddingY      int  `toml:"padding_y"`
	CornerRadius  int  `toml:"corner_radius"`
	MinWidth      int  `toml:"min_width"`
	MaxWidth      int  `toml:"max_width"`
	WaveformRows  int  `toml:"waveform_rows"`
	ShowTimestamp bool `toml:"show_timestamp"`
	ShowStatus    bool `toml:"show_status"`
	ShowDownload  bool `toml:"show_download"`
}

// ColorConfig holds hex ("#RRGGBB") or ANSI ("0"-"255") colors.
type ColorConfig struct {
	SentButton       string `toml:"sent_button"`
	ReceivedButton   string `toml:"received_button"`
	SentBorder       string `toml:"sent_border"`
	ReceivedBorder   string `toml:"received_border"`
	WaveformActive   string `toml:"waveform_active"`
	WaveformInactive string `toml:"waveform_inactive"`
	ProgressActive   string `toml:"progress_active"`
	ProgressInactive string `toml:"progress_inactive"`
	Muted            string `toml:"muted"`
	Error            string `toml:"error"`
}

// Keymap defines the keybindings of a focused bubble and the demo list.
type Keymap struct {
	TogglePlay   Key `toml:"TogglePlay"`
	SeekForward  Key `toml:"SeekForward"`
	SeekBackward Key `toml:"SeekBackward"`
	Download     Key `toml:"Download"`
	Retry        Key `toml:"Retry"`
	VolumeUp     Key `toml:"VolumeUp"`
	VolumeDown   Key `toml:"VolumeDown"`
	FocusNext    Key `toml:"FocusNext"`
	FocusPrev    Key `toml:"FocusPrev"`
	Downloads    Key `toml:"Downloads"`
	Quit         Key `toml:"Quit"`
}

// Default returns a Config struct with the default settings.
func Default() *Config {
	return &Config{
		App: AppConfig{
			UserID:          "me",
			DownloadDir:     "",
			History:         "~/.local/share/bmchat/history.json",
			RememberHistory: true,
			Notifications:   true,
			MPRIS:           true,
			LogLevel:        "info",
			MPV:             "mpv",
			TickMillis:      200,
		},
		Bubble: BubbleConfig{
			PaddingX:      1,
			PaddingY:      0,
			CornerRadius:  1,
			MinWidth:      30,
			MaxWidth:      72,
			WaveformRows:  1,
			ShowTimestamp: true,
			ShowStatus:    true,
			ShowDownload:  true,
		},
		Colors: ColorConfig{
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
		Keymap: Keymap{
			TogglePlay:   Key{"space", "enter"},
			SeekForward:  Key{"right", "l"},
			SeekBackward: Key{"left", "h"},
			Download:     Key{"d"},
			Retry:        Key{"r"},
			VolumeUp:     Key{"+", "="},
			VolumeDown:   Key{"-"},
			FocusNext:    Key{"down", "j", "tab"},
			FocusPrev:    Key{"up", "k", "shift+tab"},
			Downloads:    Key{"o"},
			Quit:         Key{"esc", "q", "ctrl+c"},
		},
		Headers: map[string]string{},
	}
}

// Dir returns ~/.config/bmchat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bmchat"), nil
}

// Load reads the configuration at path. If the file doesn't exist, it is
// created with default values. Keys missing from the file keep their
// defaults, then BMCHAT_* environment variables are applied.
func Load(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create config directory: %w", err)
	}

	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		buf := new(bytes.Buffer)
		if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("could not encode default config: %w", err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("could not write default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("could not decode config file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg.App, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("could not parse environment: %w", err)
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks colors, sizes and the keymap.
func (c *Config) Validate() error {
	colors := reflect.ValueOf(c.Colors)
	for i := 0; i < colors.NumField(); i++ {
		name := colors.Type().Field(i).Tag.Get("toml")
		if err := validateColor(colors.Field(i).String()); err != nil {
			return fmt.Errorf("invalid color in [colors] %s: %w", name, err)
		}
	}

	b := c.Bubble
	if b.MinWidth < 0 || b.MaxWidth < 0 || b.PaddingX < 0 || b.PaddingY < 0 || b.CornerRadius < 0 {
		return errors.New("[bubble] sizes must not be negative")
	}
	if b.MaxWidth > 0 && b.MinWidth > b.MaxWidth {
		return fmt.Errorf("[bubble] min_width %d is larger than max_width %d", b.MinWidth, b.MaxWidth)
	}
	if b.WaveformRows < 1 || b.WaveformRows > 4 {
		return fmt.Errorf("[bubble] waveform_rows must be between 1 and 4, got %d", b.WaveformRows)
	}
	if c.App.TickMillis < 0 {
		return fmt.Errorf("[app] tick_ms must not be negative")
	}
	if c.App.Volume < bubble.MinVolume || c.App.Volume > bubble.MaxVolume {
		return fmt.Errorf("[app] volume must be between %g and %g, got %g", bubble.MinVolume, bubble.MaxVolume, c.App.Volume)
	}

	return validateKeymap(c.Keymap)
}

func validateColor(s string) error {
	if hexColor.MatchString(s) {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 255 {
		return nil
	}
	return fmt.Errorf("%q is neither #RRGGBB nor 0-255", s)
}

// validateKeymap checks for duplicate or empty keybindings.
func validateKeymap(keymap Keymap) error {
	assigned := make(map[string]string)
	v := reflect.ValueOf(keymap)
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i).Name
		keys, ok := v.Field(i).Interface().(Key)
		if !ok {
			continue
		}
		if len(keys) == 0 {
			return fmt.Errorf("no key assigned to [keymap] %s", field)
		}
		for _, k := range keys {
			k = NormalizeKey(k)
			if k == "" {
				return fmt.Errorf("empty key in [keymap] %s", field)
			}
			if existing, dup := assigned[k]; dup {
				return fmt.Errorf("key conflict in [keymap]: key '%s' is assigned to both '%s' and '%s'", k, existing, field)
			}
			assigned[k] = field
		}
	}
	return nil
}

// NormalizeKey maps config spellings to the names Bubble Tea reports.
func NormalizeKey(k string) string {
	if k == " " {
		return k
	}
	k = strings.ToLower(strings.TrimSpace(k))
	switch k {
	case "space":
		return " "
	case "arrowup":
		return "up"
	case "arrowdown":
		return "down"
	case "arrowleft":
		return "left"
	case "arrowright":
		return "right"
	case "escape":
		return "esc"
	case "return":
		return "enter"
	}
	return k
}

// Keys expands a Key into the strings a key.Binding matches on.
func (k Key) Keys() []string {
	out := make([]string, 0, len(k)+1)
	for _, s := range k {
		n := NormalizeKey(s)
		out = append(out, n)
		if n == " " {
			out = append(out, "space")
		}
	}
	return out
}
