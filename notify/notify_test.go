package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a & b; c | d", "a  b c  d"},
		{"$(rm -rf ~)", "(rm -rf ~)"},
		{"`x` <b>", "x b"},
		{"  \"quoted\"  ", "quoted"},
	}
	for _, tc := range tests {
		if got := sanitizeString(tc.in); got != tc.want {
			t.Errorf("sanitizeString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type call struct {
	name string
	args []string
}

func recorder(n *Notifier) <-chan call {
	calls := make(chan call, 4)
	n.run = func(_ context.Context, name string, args ...string) error {
		calls <- call{name, args}
		return nil
	}
	return calls
}

func TestDownloadedNotification(t *testing.T) {
	n := New(true, zerolog.Nop())
	calls := recorder(n)

	n.Downloaded("/home/u/Downloads/1700000000123.mp3")

	select {
	case c := <-calls:
		want := []string{"-a", "bmchat", "Download complete", "1700000000123.mp3"}
		if c.name != "notify-send" || len(c.args) != len(want) {
			t.Fatalf("call = %+v", c)
		}
		for i := range want {
			if c.args[i] != want[i] {
				t.Errorf("arg %d = %q, want %q", i, c.args[i], want[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no notification sent")
	}
}

func TestDisabledNotifier(t *testing.T) {
	n := New(false, zerolog.Nop())
	calls := recorder(n)

	n.DownloadFailed("http status 404")

	select {
	case c := <-calls:
		t.Errorf("disabled notifier ran %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}
