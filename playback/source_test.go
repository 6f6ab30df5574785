package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestAudioExt(t *testing.T) {
	tests := []struct {
		url, contentType, want string
	}{
		{"https://cdn.example.com/a/voice.MP3", "", ".mp3"},
		{"https://cdn.example.com/a/voice.ogg?sig=1", "audio/mpeg", ".ogg"},
		{"https://cdn.example.com/a/voice", "audio/x-wav", ".wav"},
		{"https://cdn.example.com/a/voice", "audio/flac; charset=binary", ".flac"},
		{"https://cdn.example.com/a/voice.bin", "application/octet-stream", ""},
	}
	for _, tc := range tests {
		if got := audioExt(tc.url, tc.contentType); got != tc.want {
			t.Errorf("audioExt(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}

func TestDecodeAudioRejectsUnknownFormat(t *testing.T) {
	if _, _, err := decodeAudio([]byte("x"), ".aac"); err == nil {
		t.Error("expected an error for .aac")
	}
}

func TestMPVArgs(t *testing.T) {
	got := mpvArgs("https://x/v.mp4", "/tmp/s.sock", map[string]string{
		"Authorization": "Bearer t",
		"Accept":        "a,b",
	})
	want := []string{
		"--pause",
		"--keep-open=yes",
		"--no-terminal",
		"--force-window=immediate",
		"--input-ipc-server=/tmp/s.sock",
		`--http-header-fields=Accept: a\,b,Authorization: Bearer t`,
		"--",
		"https://x/v.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mpvArgs =\n%q\nwant\n%q", got, want)
	}
	if args := mpvArgs("u", "s", nil); len(args) != 7 {
		t.Errorf("no headers should add no header flag: %q", args)
	}
}

// fakeMPV answers every request on conn, sending an event first so the
// client has to skip it.
func fakeMPV(t *testing.T, conn net.Conn, answer func(cmd []any) (any, string)) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadBytes('\n')
			if err != nil {
				return
			}
			var req struct {
				Command   []any `json:"command"`
				RequestID int64 `json:"request_id"`
			}
			if err := json.Unmarshal(line, &req); err != nil {
				return
			}
			data, status := answer(req.Command)
			reply, _ := json.Marshal(map[string]any{"data": data, "error": status, "request_id": req.RequestID})
			_, _ = conn.Write([]byte(`{"event":"property-change","name":"pause"}` + "\n"))
			_, _ = conn.Write(append(reply, '\n'))
		}
	}()
}

func TestIPCClient(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var seen [][]any
	fakeMPV(t, server, func(cmd []any) (any, string) {
		seen = append(seen, cmd)
		if cmd[0] == "get_property" && cmd[1] == "duration" {
			return 12.5, "success"
		}
		if cmd[0] == "get_property" {
			return nil, "property unavailable"
		}
		return nil, "success"
	})

	c := newIPCClient(client)
	defer c.Close()

	res, err := c.command("get_property", "duration")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if res.Float() != 12.5 {
		t.Errorf("duration = %v", res.Float())
	}

	if _, err := c.command("get_property", "time-pos"); err == nil {
		t.Error("expected an error for an unavailable property")
	}

	if _, err := c.command("set_property", "pause", false); err != nil {
		t.Errorf("set_property: %v", err)
	}
	last := seen[len(seen)-1]
	if last[0] != "set_property" || last[2] != false {
		t.Errorf("last command = %v", last)
	}
}

func TestWaitLoaded(t *testing.T) {
	tests := []struct {
		name     string
		duration any
		want     time.Duration
	}{
		{"file", 12.5, 12500 * time.Millisecond},
		{"live stream", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer server.Close()
			fakeMPV(t, server, func(cmd []any) (any, string) {
				switch {
				case cmd[1] == "duration" && tc.duration != nil:
					return tc.duration, "success"
				case cmd[1] == "time-pos":
					return 0.0, "success"
				}
				return nil, "property unavailable"
			})
			ipc := newIPCClient(client)
			defer ipc.Close()

			d, err := waitLoaded(context.Background(), ipc, make(chan struct{}))
			if err != nil {
				t.Fatalf("waitLoaded: %v", err)
			}
			if d != tc.want {
				t.Errorf("duration = %v, want %v", d, tc.want)
			}
		})
	}
}

func TestWaitLoadedStopsWhenMPVExits(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	fakeMPV(t, server, func([]any) (any, string) { return nil, "property unavailable" })
	ipc := newIPCClient(client)
	defer ipc.Close()

	exited := make(chan struct{})
	close(exited)
	if _, err := waitLoaded(context.Background(), ipc, exited); err == nil {
		t.Error("expected an error once mpv exited")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := waitLoaded(ctx, ipc, make(chan struct{})); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestVideoStateSurvivesFailedQueries(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var mu sync.Mutex
	broken := false
	fakeMPV(t, server, func(cmd []any) (any, string) {
		mu.Lock()
		defer mu.Unlock()
		if broken {
			return nil, "error running command"
		}
		switch cmd[1] {
		case "pause", "eof-reached":
			return false, "success"
		case "time-pos":
			return 3.0, "success"
		}
		return nil, "success"
	})

	v := &VideoSource{ipc: newIPCClient(client)}
	defer v.ipc.Close()

	if !v.Playing() || v.Ended() || v.Position() != 3*time.Second {
		t.Fatalf("playing=%v ended=%v pos=%v", v.Playing(), v.Ended(), v.Position())
	}

	mu.Lock()
	broken = true
	mu.Unlock()
	if !v.Playing() {
		t.Error("a failed pause query reported a pause")
	}
	if v.Ended() {
		t.Error("a failed eof query reported the end")
	}
	if got := v.Position(); got != 3*time.Second {
		t.Errorf("position = %v, want the last answer", got)
	}
}

func TestSeconds(t *testing.T) {
	if got := seconds(gjson.Parse("1.5").Float()); got.Milliseconds() != 1500 {
		t.Errorf("seconds(1.5) = %v", got)
	}
}
