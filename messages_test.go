package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bmchat/media"
)

func TestLoadMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.toml")
	content := `
[[message]]
id = "m1"
kind = "voice"
url = "https://example.com/a.mp3"
author = "alice"
duration = "12s"
status = "seen"
created = 2024-05-01T09:30:00Z
samples = [0.1, 0.5, 0.9]

[[message]]
kind = "video"
url = "https://example.com/b.mp4"
author = "bob"

[message.headers]
Authorization = "Bearer x"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	msgs, err := loadMessages(path)
	if err != nil {
		t.Fatalf("loadMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}

	a := msgs[0]
	if a.ID != "m1" || a.Kind != media.Audio || a.Duration != 12*time.Second || a.Status != media.Seen {
		t.Errorf("first message = %+v", a)
	}
	if len(a.Samples) != 3 || !a.CreatedAt.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("first message = %+v", a)
	}

	v := msgs[1]
	if v.ID == "" || v.Kind != media.Video || v.Status != media.Sent || v.CreatedAt.IsZero() {
		t.Errorf("second message = %+v", v)
	}
	if v.Headers["Authorization"] != "Bearer x" {
		t.Errorf("headers = %v", v.Headers)
	}
}

func TestLoadMessagesErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "no [[message]]"},
		{"no url", "[[message]]\nkind = \"voice\"\n", "url is required"},
		{"kind", "[[message]]\nurl = \"u\"\nkind = \"gif\"\n", "unknown kind"},
		{"duration", "[[message]]\nurl = \"u\"\nduration = \"soon\"\n", "invalid duration"},
		{"syntax", "[[message]\n", "could not decode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".toml")
			os.WriteFile(path, []byte(tc.content), 0644)
			_, err := loadMessages(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}

	if _, err := loadMessages(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSampleMessages(t *testing.T) {
	msgs := sampleMessages("me")
	sent := 0
	for _, m := range msgs {
		if m.ID == "" || m.URL == "" {
			t.Errorf("incomplete sample %+v", m)
		}
		if m.SentBy("me") {
			sent++
		}
	}
	if sent == 0 || sent == len(msgs) {
		t.Errorf("samples should mix sent and received, %d of %d sent", sent, len(msgs))
	}
}
