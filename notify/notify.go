// Package notify sends freedesktop desktop notifications through notify-send.
package notify

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const appName = "bmchat"

// Notifier sends notifications in the background. The zero value is not
// usable; use New.
type Notifier struct {
	enabled bool
	log     zerolog.Logger
	run     func(ctx context.Context, name string, args ...string) error
}

// New returns a notifier. A disabled notifier drops everything.
func New(enabled bool, log zerolog.Logger) *Notifier {
	return &Notifier{enabled: enabled, log: log, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Send shows summary and body without blocking the caller.
func (n *Notifier) Send(summary, body string) {
	if !n.enabled {
		return
	}
	summary, body = sanitizeString(summary), sanitizeString(body)
	if summary == "" {
		summary = appName
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.run(ctx, "notify-send", "-a", appName, summary, body); err != nil {
			// Missing notify-send is common on headless systems.
			n.log.Debug().Err(err).Msg("send notification")
		}
	}()
}

// Downloaded announces a finished download.
func (n *Notifier) Downloaded(path string) {
	n.Send("Download complete", filepath.Base(path))
}

// DownloadFailed announces a failed download.
func (n *Notifier) DownloadFailed(reason string) {
	n.Send("Download failed", reason)
}

// sanitizeString removes special characters that might cause issues in shell commands or D-Bus.
func sanitizeString(s string) string {
	replacer := strings.NewReplacer(
		"&", "",
		";", "",
		"|", "",
		"*", "",
		"<", "",
		">", "",
		"^", "",
		"$", "",
		"`", "",
		"\"", "",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
