package media

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestSnapshotProgress(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"unknown duration", Snapshot{Position: time.Second}, 0},
		{"half", Snapshot{Position: time.Second, Duration: 2 * time.Second}, 0.5},
		{"past end", Snapshot{Position: 3 * time.Second, Duration: 2 * time.Second}, 1},
		{"negative", Snapshot{Position: -time.Second, Duration: 2 * time.Second}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.snap.Progress(); got != tc.want {
				t.Errorf("Progress() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSnapshotClamp(t *testing.T) {
	s := Snapshot{Position: 5 * time.Second, Duration: 2 * time.Second}.Clamp()
	if s.Position != 2*time.Second {
		t.Errorf("position = %v, want 2s", s.Position)
	}

	s = Snapshot{Position: 5 * time.Second}.Clamp()
	if s.Position != 5*time.Second {
		t.Errorf("position with unknown duration = %v, want unchanged", s.Position)
	}

	s = Snapshot{Position: -time.Millisecond, Duration: time.Second}.Clamp()
	if s.Position != 0 {
		t.Errorf("negative position = %v, want 0", s.Position)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	open := &OpenError{URL: "http://x/a.mp3", Err: io.ErrUnexpectedEOF}
	if !errors.Is(open, ErrPlaybackOpen) {
		t.Error("OpenError should match ErrPlaybackOpen")
	}
	if !errors.Is(open, io.ErrUnexpectedEOF) {
		t.Error("OpenError should unwrap its cause")
	}

	var status *HTTPStatusError
	wrapped := FailedWith(&HTTPStatusError{Code: 404})
	if !errors.As(wrapped.Err, &status) || status.Code != 404 {
		t.Fatalf("expected HTTPStatusError, got %v", wrapped.Err)
	}
	if wrapped.Reason() != "http status 404" {
		t.Errorf("Reason() = %q", wrapped.Reason())
	}

	w := &WriteError{Path: "/x", Err: errors.New("disk full")}
	if w.Error() != "disk full" {
		t.Errorf("WriteError message = %q", w.Error())
	}

	tr := &TransientError{Op: "seek", Err: io.EOF}
	if !errors.Is(tr, io.EOF) || tr.Error() != "seek: EOF" {
		t.Errorf("unexpected transient error %q", tr.Error())
	}
}

func TestNewMessage(t *testing.T) {
	samples := []float64{0.1, 0.2}
	m := NewMessage(Message{Kind: Audio, URL: "http://x/a.mp3", Samples: samples})
	if m.ID == "" {
		t.Error("expected generated ID")
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected creation time")
	}
	samples[0] = 0.9
	if m.Samples[0] != 0.1 {
		t.Error("message should not share the caller's sample slice")
	}

	v := NewMessage(Message{ID: "v1", Kind: Video, Samples: []float64{1}})
	if v.ID != "v1" || v.Samples != nil {
		t.Errorf("video message = %+v", v)
	}

	if m.SentBy("") {
		t.Error("empty user id must never match")
	}
	me := NewMessage(Message{AuthorID: "u1"})
	if !me.SentBy("u1") || me.SentBy("u2") {
		t.Error("SentBy mismatch")
	}
}

func TestParse(t *testing.T) {
	if k, ok := ParseKind("video"); !ok || k != Video {
		t.Errorf("ParseKind(video) = %v, %v", k, ok)
	}
	if _, ok := ParseKind("gif"); ok {
		t.Error("ParseKind(gif) should fail")
	}
	for _, s := range []Status{Sending, Sent, Delivered, Seen, Failed} {
		if got := ParseStatus(s.String()); got != s {
			t.Errorf("ParseStatus(%q) = %v", s.String(), got)
		}
	}
}
