package main

import (
	"fmt"
	"os"
	"path/filepath"

	"bmchat/bubble"
	"bmchat/config"
	"bmchat/history"
	"bmchat/media"
	"bmchat/mpris"
	"bmchat/notify"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [messages.toml]\n", os.Args[0])
		os.Exit(1)
	}
	if err := run(); err != nil {
		die(err)
	}
}

// run owns every deferred cleanup, so it returns instead of exiting.
func run() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		return err
	}

	log, closeLog, err := openLog(cfg.App, dir)
	if err != nil {
		return err
	}
	defer closeLog()

	var msgs []media.Message
	if len(os.Args) == 2 {
		if msgs, err = loadMessages(os.Args[1]); err != nil {
			return err
		}
	} else {
		msgs = sampleMessages(cfg.App.UserID)
	}

	hist, err := history.Open(cfg.App.History, cfg.App.RememberHistory)
	if err != nil {
		return err
	}
	notifier := notify.New(cfg.App.Notifications, log)

	opts := cfg.BubbleOptions(log)
	opts.OnDownloaded = func(msg media.Message, path string) {
		if err := hist.Record(msg.ID, msg.URL, path); err != nil {
			log.Warn().Err(err).Str("message", msg.ID).Msg("record download")
		}
		notifier.Downloaded(path)
	}
	opts.OnDownloadError = func(msg media.Message, reason string) {
		log.Warn().Str("message", msg.ID).Str("reason", reason).Msg("download failed")
		notifier.DownloadFailed(reason)
	}

	bubbles := make([]bubble.Model, 0, len(msgs))
	for _, msg := range msgs {
		b := bubble.New(msg, bubble.SourceFor(msg, opts), cfg.App.UserID, opts)
		if path, ok := hist.Lookup(msg.ID); ok {
			b = b.SetDownloaded(path)
		}
		bubbles = append(bubbles, b)
	}

	var srv *mpris.Server
	if cfg.App.MPRIS {
		srv = mpris.New(log)
	}
	app := NewApp(bubbles, cfg.Keymap, srv, hist, log)
	defer app.Dispose()

	log.Info().Int("messages", len(msgs)).Str("user", cfg.App.UserID).Msg("starting")
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if srv != nil {
		if err := srv.Start(p.Quit); err != nil {
			log.Warn().Err(err).Msg("media keys unavailable")
		} else {
			defer srv.StopService()
		}
	}
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("program exited")
		return err
	}
	return nil
}

// openLog writes JSON logs to a file, the terminal belongs to the UI.
func openLog(app config.AppConfig, dir string) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log_level %q: %w", app.LogLevel, err)
	}
	path := app.LogFile
	if path == "" {
		path = filepath.Join(dir, "bmchat.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not open log file: %w", err)
	}
	log := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return log, func() { f.Close() }, nil
}

func die(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
