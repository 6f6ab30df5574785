package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"bmchat/media"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	ipcTimeout   = 2 * time.Second
	dialInterval = 50 * time.Millisecond
)

// VideoOption configures a VideoSource.
type VideoOption func(*VideoSource)

// WithBinary sets the mpv executable, "mpv" by default.
func WithBinary(bin string) VideoOption {
	return func(v *VideoSource) { v.binary = bin }
}

// WithSocketDir sets where the IPC socket is created, os.TempDir by default.
func WithSocketDir(dir string) VideoOption {
	return func(v *VideoSource) { v.socketDir = dir }
}

// WithVideoLogger sets the logger.
func WithVideoLogger(l zerolog.Logger) VideoOption {
	return func(v *VideoSource) { v.log = l }
}

// VideoSource plays a remote video in an mpv window and drives it over
// mpv's JSON IPC socket.
type VideoSource struct {
	url       string
	headers   map[string]string
	binary    string
	socketDir string
	log       zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	ipc    *ipcClient
	sock   string

	// last answers from mpv, kept when a query fails
	pos      time.Duration
	duration time.Duration
	playing  bool
	ended    bool
}

// NewVideoSource prepares a source for rawURL. headers are forwarded to mpv.
func NewVideoSource(rawURL string, headers map[string]string, opts ...VideoOption) *VideoSource {
	v := &VideoSource{
		url:       rawURL,
		headers:   headers,
		binary:    "mpv",
		socketDir: os.TempDir(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Open starts mpv paused and waits until the file is loaded. Streams with
// no known length open with a zero duration. mpv exits when the file cannot
// be loaded, which fails the open.
func (v *VideoSource) Open(ctx context.Context) (time.Duration, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sock := filepath.Join(v.socketDir, "bmchat-mpv-"+uuid.NewString()+".sock")
	cmd := exec.Command(v.binary, mpvArgs(v.url, sock, v.headers)...)
	if err := cmd.Start(); err != nil {
		return 0, &media.OpenError{URL: v.url, Err: fmt.Errorf("start %s: %w", v.binary, err)}
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	v.cmd, v.exited, v.sock = cmd, exited, sock

	conn, err := dialIPC(ctx, sock, exited)
	if err != nil {
		v.releaseLocked()
		return 0, &media.OpenError{URL: v.url, Err: err}
	}
	v.ipc = newIPCClient(conn)

	d, err := waitLoaded(ctx, v.ipc, exited)
	if err != nil {
		v.releaseLocked()
		return 0, &media.OpenError{URL: v.url, Err: err}
	}
	v.duration = d
	v.log.Debug().Str("url", v.url).Dur("duration", d).Msg("video opened")
	return d, nil
}

// waitLoaded polls until mpv has loaded the file. time-pos only becomes
// available once it has, duration may never do so for live streams.
func waitLoaded(ctx context.Context, ipc *ipcClient, exited <-chan struct{}) (time.Duration, error) {
	t := time.NewTicker(dialInterval)
	defer t.Stop()
	for {
		if res, err := ipc.command("get_property", "duration"); err == nil && res.Float() > 0 {
			return seconds(res.Float()), nil
		}
		if _, err := ipc.command("get_property", "time-pos"); err == nil {
			return 0, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-exited:
			return 0, errors.New("mpv exited before the media loaded")
		case <-t.C:
		}
	}
}

func (v *VideoSource) Play() error {
	return v.setPause(false)
}

func (v *VideoSource) Pause() error {
	return v.setPause(true)
}

func (v *VideoSource) setPause(paused bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return errors.New("video source not open")
	}
	if _, err := v.ipc.command("set_property", "pause", paused); err != nil {
		return err
	}
	v.playing = !paused
	return nil
}

func (v *VideoSource) Seek(pos time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return errors.New("video source not open")
	}
	if _, err := v.ipc.command("seek", pos.Seconds(), "absolute"); err != nil {
		return err
	}
	v.pos = pos
	v.ended = false
	return nil
}

// Position returns the last position mpv reported when it cannot be asked.
func (v *VideoSource) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return v.pos
	}
	if res, err := v.ipc.command("get_property", "time-pos"); err == nil {
		v.pos = seconds(res.Float())
	}
	return v.pos
}

// Playing follows the pause property, so a pause in the mpv window shows
// up here too.
func (v *VideoSource) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return false
	}
	if paused, err := v.ipc.command("get_property", "pause"); err == nil {
		v.playing = !paused.Bool()
	}
	return v.playing
}

// Ended reports mpv's eof-reached; with --keep-open mpv pauses on the last
// frame instead of exiting.
func (v *VideoSource) Ended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return false
	}
	if eof, err := v.ipc.command("get_property", "eof-reached"); err == nil {
		v.ended = eof.Bool()
	}
	return v.ended
}

// Duration asks mpv again, for streams whose length was unknown at Open.
func (v *VideoSource) Duration() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc == nil {
		return v.duration
	}
	if res, err := v.ipc.command("get_property", "duration"); err == nil && res.Float() > 0 {
		v.duration = seconds(res.Float())
	}
	return v.duration
}

// Close asks mpv to quit, kills it if it does not, and removes the socket.
func (v *VideoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ipc != nil {
		if _, err := v.ipc.command("quit"); err != nil {
			v.log.Debug().Err(err).Msg("mpv quit")
		}
	}
	v.releaseLocked()
	return nil
}

func (v *VideoSource) releaseLocked() {
	if v.ipc != nil {
		v.ipc.Close()
		v.ipc = nil
	}
	if v.cmd != nil {
		select {
		case <-v.exited:
		case <-time.After(ipcTimeout):
			if v.cmd.Process != nil {
				_ = v.cmd.Process.Kill()
			}
			<-v.exited
		}
		v.cmd = nil
	}
	if v.sock != "" {
		_ = os.Remove(v.sock)
		v.sock = ""
	}
}

func mpvArgs(rawURL, sock string, headers map[string]string) []string {
	args := []string{
		"--pause",
		"--keep-open=yes",
		"--no-terminal",
		"--force-window=immediate",
		"--input-ipc-server=" + sock,
	}
	if h := headerFields(headers); h != "" {
		args = append(args, "--http-header-fields="+h)
	}
	return append(args, "--", rawURL)
}

// headerFields renders headers in mpv's comma separated list syntax.
func headerFields(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		// Commas separate list items in mpv options.
		fields = append(fields, k+": "+strings.ReplaceAll(headers[k], ",", `\,`))
	}
	return strings.Join(fields, ",")
}

func dialIPC(ctx context.Context, sock string, exited <-chan struct{}) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", sock)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, errors.New("mpv exited before opening its IPC socket")
		case <-time.After(dialInterval):
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ipcClient speaks mpv's line based JSON protocol. Replies are matched by
// request_id; asynchronous events are skipped.
type ipcClient struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	next int64
}

func newIPCClient(conn net.Conn) *ipcClient {
	return &ipcClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *ipcClient) command(args ...any) (gjson.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	id := c.next
	req, err := json.Marshal(map[string]any{"command": args, "request_id": id})
	if err != nil {
		return gjson.Result{}, err
	}
	if err := c.conn.SetDeadline(time.Now().Add(ipcTimeout)); err != nil {
		return gjson.Result{}, err
	}
	if _, err := c.conn.Write(append(req, '\n')); err != nil {
		return gjson.Result{}, fmt.Errorf("mpv ipc write: %w", err)
	}

	for {
		line, err := c.r.ReadBytes('\n')
		if err != nil {
			return gjson.Result{}, fmt.Errorf("mpv ipc read: %w", err)
		}
		res := gjson.ParseBytes(line)
		if res.Get("event").Exists() || res.Get("request_id").Int() != id {
			continue
		}
		if e := res.Get("error").String(); e != "success" {
			return gjson.Result{}, fmt.Errorf("mpv %v: %s", args[0], e)
		}
		return res.Get("data"), nil
	}
}

func (c *ipcClient) Close() error {
	return c.conn.Close()
}
