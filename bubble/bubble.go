// Package bubble renders one audio or video chat message as a Bubble Tea
// component: a play button, a waveform or progress track, the timestamp
// and delivery status, and a download button.
//
// A host program keeps one Model per visible message, forwards every
// tea.Msg to it and calls Dispose when the message leaves the screen.
package bubble

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"bmchat/download"
	"bmchat/media"
	"bmchat/playback"
	"bmchat/track"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// SnapshotMsg carries a player snapshot to the bubble that owns ID.
type SnapshotMsg struct {
	ID       string
	Snapshot media.Snapshot
	State    playback.State
	Err      error
}

// Volume bounds and step, in beep's log2 scale.
const (
	MinVolume  = -5.0
	MaxVolume  = 2.0
	volumeStep = 0.5
)

// volumeSetter is implemented by sources with their own gain, the audio
// source in practice.
type volumeSetter interface {
	SetVolume(v float64)
}

// DownloadedMsg reports the end of a download started by the bubble ID.
type DownloadedMsg struct {
	ID      string
	Outcome media.Outcome
}

// Model is one media bubble.
type Model struct {
	msg    media.Message
	opts   Options
	sent   bool
	log    zerolog.Logger
	ctrl   *playback.Controller
	dl     *download.Downloader
	snaps  <-chan media.Snapshot
	unsub  func()
	keys   KeyMap
	spin   spinner.Model
	mixer  volumeSetter // nil when the source has no gain of its own

	snap        media.Snapshot
	state       playback.State
	err         error
	spinning    bool
	downloading bool
	saved       string
	dlErr       string
	focused     bool
	originX     int
	originY     int
	volume      float64
}

// SourceFor builds the playback backend matching the message kind.
func SourceFor(msg media.Message, opts Options) playback.Source {
	headers := opts.headersFor(msg)
	if msg.Kind == media.Video {
		bin := opts.MPVBinary
		if bin == "" {
			bin = "mpv"
		}
		return playback.NewVideoSource(msg.URL, headers,
			playback.WithBinary(bin),
			playback.WithVideoLogger(opts.Logger))
	}
	return playback.NewAudioSource(msg.URL, headers,
		playback.WithVolume(opts.Volume),
		playback.WithAudioLogger(opts.Logger))
}

// New creates the bubble for msg as seen by userID. src is owned by the
// bubble from now on and released by Dispose.
func New(msg media.Message, src playback.Source, userID string, opts Options) Model {
	log := opts.Logger.With().Str("message", msg.ID).Str("kind", msg.Kind.String()).Logger()

	ctrlOpts := []playback.Option{
		playback.WithDurationHint(msg.Duration),
		playback.WithLogger(log),
	}
	if opts.TickInterval > 0 {
		ctrlOpts = append(ctrlOpts, playback.WithTickInterval(opts.TickInterval))
	}
	ctrl := playback.New(src, ctrlOpts...)
	snaps, unsub := ctrl.Subscribe()

	if opts.SeekStep <= 0 {
		opts.SeekStep = 5 * time.Second
	}
	if opts.WaveformRows < 1 {
		opts.WaveformRows = 1
	}

	m := Model{
		msg:   msg,
		opts:  opts,
		sent:  msg.SentBy(userID),
		log:   log,
		ctrl:  ctrl,
		snaps: snaps,
		unsub: unsub,
		keys:  opts.Keys,
		spin:  spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		snap:  ctrl.Snapshot(),
		state: playback.Idle,
	}
	if vs, ok := src.(volumeSetter); ok {
		m.mixer = vs
		m.volume = min(max(opts.Volume, MinVolume), MaxVolume)
	}
	m.dl = download.New(m.downloadOptions()...)
	return m
}

func (m Model) downloadOptions() []download.Option {
	msg := m.msg
	ext := ".mp3"
	if msg.Kind == media.Video {
		ext = ".mp4"
	}
	opts := []download.Option{
		download.WithDefaultExt(ext),
		download.WithLogger(m.log),
	}
	if m.opts.Dirs != nil {
		opts = append(opts, download.WithDirResolver(m.opts.Dirs))
	}
	if m.opts.Permission != nil {
		opts = append(opts, download.WithPermission(m.opts.Permission))
	}
	if fn := m.opts.OnDownloaded; fn != nil {
		opts = append(opts, download.OnSuccess(func(p string) { fn(msg, p) }))
	}
	if fn := m.opts.OnDownloadError; fn != nil {
		opts = append(opts, download.OnError(func(r string) { fn(msg, r) }))
	}
	return opts
}

// ID is the message ID routed messages are matched against.
func (m Model) ID() string { return m.msg.ID }

// Message returns the message shown by the bubble.
func (m Model) Message() media.Message { return m.msg }

// State is the playback state as last seen by the bubble.
func (m Model) State() playback.State { return m.state }

// Snapshot is the snapshot the bubble last rendered.
func (m Model) Snapshot() media.Snapshot { return m.snap }

// Downloading reports whether a download started by this bubble is running.
func (m Model) Downloading() bool { return m.downloading }

// Volume is the gain of an audio bubble, 0 meaning unchanged.
func (m Model) Volume() float64 { return m.volume }

// Sent reports whether the current user authored the message.
func (m Model) Sent() bool { return m.sent }

// Focus makes the bubble react to keys.
func (m Model) Focus() Model {
	m.focused = true
	return m
}

// Blur stops the bubble from reacting to keys.
func (m Model) Blur() Model {
	m.focused = false
	return m
}

func (m Model) Focused() bool { return m.focused }

// Player is the bubble's playback controller, for hosts that drive it
// from outside the terminal.
func (m Model) Player() *playback.Controller { return m.ctrl }

// Keys returns the bindings the bubble reacts to when focused.
func (m Model) Keys() KeyMap { return m.keys }

// SetOrigin tells the bubble where its top left corner is on screen, so
// mouse clicks can be mapped onto the track.
func (m Model) SetOrigin(x, y int) Model {
	m.originX, m.originY = x, y
	return m
}

// SetDownloaded marks the message as already saved at path.
func (m Model) SetDownloaded(path string) Model {
	m.saved = path
	return m
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return m.waitSnapshot()
}

func (m Model) waitSnapshot() tea.Cmd {
	id, ch, ctrl := m.msg.ID, m.snaps, m.ctrl
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return SnapshotMsg{ID: id, Snapshot: s, State: ctrl.State(), Err: ctrl.Err()}
	}
}

// Update handles routed snapshots, download results, keys when focused and
// mouse clicks on the bubble.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.state == playback.Disposed {
		return m, nil
	}

	switch msg := msg.(type) {
	case SnapshotMsg:
		if msg.ID != m.msg.ID {
			return m, nil
		}
		m.snap = msg.Snapshot
		m.state = msg.State
		m.err = msg.Err
		spin := m.startSpinner()
		return m, tea.Batch(m.waitSnapshot(), spin)

	case DownloadedMsg:
		if msg.ID != m.msg.ID {
			return m, nil
		}
		m.downloading = false
		if msg.Outcome.OK() {
			m.saved = msg.Outcome.Path
			m.dlErr = ""
		} else {
			m.dlErr = msg.Outcome.Reason()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		if m.state != playback.Opening && !m.downloading {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.TogglePlay):
		return m.toggle()
	case key.Matches(msg, m.keys.SeekForward):
		return m.seek(m.snap.Position + m.opts.SeekStep)
	case key.Matches(msg, m.keys.SeekBackward):
		return m.seek(m.snap.Position - m.opts.SeekStep)
	case key.Matches(msg, m.keys.Download):
		return m.download()
	case key.Matches(msg, m.keys.Retry):
		return m.retry()
	case key.Matches(msg, m.keys.VolumeUp):
		return m.changeVolume(volumeStep), nil
	case key.Matches(msg, m.keys.VolumeDown):
		return m.changeVolume(-volumeStep), nil
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	bx, by := m.buttonPos()
	if msg.X == bx && msg.Y == by {
		return m.toggle()
	}
	if dx, dy := m.downloadPos(); m.opts.ShowDownload && msg.X == dx && msg.Y == dy {
		return m.download()
	}
	x, y, w, h := m.TrackRect()
	if msg.X >= x && msg.X < x+w && msg.Y >= y && msg.Y < y+h {
		target := track.Target(float64(msg.X-x), float64(w), m.snap.Duration)
		return m.seek(target)
	}
	return m, nil
}

func (m Model) toggle() (Model, tea.Cmd) {
	switch m.state {
	case playback.Failed:
		return m.retry()
	case playback.Opening:
		return m, nil
	}
	if err := m.ctrl.Toggle(context.Background()); err != nil {
		return m, nil
	}
	m.state = m.ctrl.State()
	m.snap = m.ctrl.Snapshot()
	spin := m.startSpinner()
	return m, spin
}

func (m Model) seek(target time.Duration) (Model, tea.Cmd) {
	if err := m.ctrl.Seek(target); err != nil {
		return m, nil
	}
	m.snap = m.ctrl.Snapshot()
	return m, nil
}

func (m Model) retry() (Model, tea.Cmd) {
	if m.state != playback.Failed {
		return m, nil
	}
	if err := m.ctrl.Retry(context.Background()); err != nil {
		return m, nil
	}
	m.err = nil
	m.state = m.ctrl.State()
	m.snap = m.ctrl.Snapshot()
	spin := m.startSpinner()
	return m, spin
}

func (m Model) changeVolume(delta float64) Model {
	if m.mixer == nil {
		return m
	}
	m.volume = min(max(m.volume+delta, MinVolume), MaxVolume)
	m.mixer.SetVolume(m.volume)
	return m
}

// download starts a background download unless one is already running.
func (m Model) download() (Model, tea.Cmd) {
	if !m.opts.ShowDownload || m.downloading {
		return m, nil
	}
	m.downloading = true
	m.dlErr = ""

	id, url, dl := m.msg.ID, m.msg.URL, m.dl
	headers := m.opts.headersFor(m.msg)
	fetch := func() tea.Msg {
		out, err := dl.Download(context.Background(), url, headers)
		if errors.Is(err, download.ErrInFlight) {
			return nil
		}
		return DownloadedMsg{ID: id, Outcome: out}
	}
	spin := m.startSpinner()
	return m, tea.Batch(fetch, spin)
}

// startSpinner begins the spinner animation if something is pending and
// it is not already running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || (m.state != playback.Opening && !m.downloading) {
		return nil
	}
	m.spinning = true
	return m.spin.Tick
}

// Dispose releases the player. The bubble ignores every message afterwards.
// A running download is left to finish on its own.
func (m Model) Dispose() Model {
	if m.state == playback.Disposed {
		return m
	}
	m.unsub()
	if err := m.ctrl.Close(); err != nil {
		m.log.Warn().Err(err).Msg("release player")
	}
	m.state = playback.Disposed
	m.spinning = false
	return m
}

// SavedPath is where the message was downloaded to, if anywhere.
func (m Model) SavedPath() string { return m.saved }

// savedName is the file name shown next to a finished download.
func (m Model) savedName() string {
	if m.saved == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(m.saved, "\\", "/"))
}
