// Package mpris exposes the focused bubble's player on the session bus as
// an MPRIS2 media player, so desktop media keys and widgets can drive it.
package mpris

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bmchat/media"
	"bmchat/playback"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	busName     = "org.mpris.MediaPlayer2.bmchat"
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
	propsIface  = "org.freedesktop.DBus.Properties"
	noTrack     = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
)

// Player is the part of a playback controller the bus can drive.
type Player interface {
	Play(ctx context.Context) error
	Pause() error
	Toggle(ctx context.Context) error
	Seek(pos time.Duration) error
	Snapshot() media.Snapshot
	State() playback.State
}

// Server is the MPRIS object. Without a bus connection (before Start) it
// still answers calls, it just emits no signals.
type Server struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	player Player
	msg    media.Message
	status string
	quit   func()
	log    zerolog.Logger
}

// New returns a server with no player attached.
func New(log zerolog.Logger) *Server {
	return &Server{log: log, status: "Stopped"}
}

// Start connects to the session bus, exports the player and claims the
// bus name. quit is called when a client asks the player to quit.
func (s *Server) Start(quit func()) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("could not connect to the session bus: %w", err)
	}
	for _, iface := range []string{propsIface, rootIface, playerIface} {
		if err := conn.Export(s, objectPath, iface); err != nil {
			conn.Close()
			return fmt.Errorf("could not export %s: %w", iface, err)
		}
	}
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("could not request %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("%s is already taken", busName)
	}

	s.mu.Lock()
	s.conn = conn
	s.quit = quit
	s.mu.Unlock()
	return nil
}

// StopService releases the bus name and closes the connection.
func (s *Server) StopService() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.ReleaseName(busName)
		conn.Close()
	}
}

// SetPlayer points the server at the player of msg.
func (s *Server) SetPlayer(p Player, msg media.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = p
	s.msg = msg
	s.status = s.playbackStatusLocked()
	s.emitLocked(map[string]any{
		"PlaybackStatus": s.status,
		"Metadata":       s.metadataLocked(),
	})
}

// Refresh announces a playback status change, if there was one.
func (s *Server) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.playbackStatusLocked(); st != s.status {
		s.status = st
		s.emitLocked(map[string]any{"PlaybackStatus": st})
	}
}

// --- org.mpris.MediaPlayer2 ---

func (s *Server) Quit() *dbus.Error {
	s.mu.Lock()
	quit := s.quit
	s.mu.Unlock()
	if quit != nil {
		quit()
	}
	return nil
}

func (s *Server) Raise() *dbus.Error { return nil }

// --- org.mpris.MediaPlayer2.Player ---

func (s *Server) Next() *dbus.Error     { return nil }
func (s *Server) Previous() *dbus.Error { return nil }

func (s *Server) Play() *dbus.Error {
	return s.drive("play", func(p Player) error { return p.Play(context.Background()) })
}

func (s *Server) Pause() *dbus.Error {
	return s.drive("pause", func(p Player) error {
		if p.State() != playback.Playing {
			return nil
		}
		return p.Pause()
	})
}

func (s *Server) PlayPause() *dbus.Error {
	return s.drive("play-pause", func(p Player) error { return p.Toggle(context.Background()) })
}

// Stop pauses and rewinds; a bubble has no stopped state of its own.
func (s *Server) Stop() *dbus.Error {
	return s.drive("stop", func(p Player) error {
		if p.State() == playback.Playing {
			if err := p.Pause(); err != nil {
				return err
			}
		}
		return p.Seek(0)
	})
}

// Seek moves by offset microseconds.
func (s *Server) Seek(offset int64) *dbus.Error {
	return s.drive("seek", func(p Player) error {
		pos := p.Snapshot().Position + time.Duration(offset)*time.Microsecond
		return p.Seek(pos)
	})
}

// SetPosition jumps to position microseconds if trackID is the current track.
func (s *Server) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	s.mu.Lock()
	current := trackPath(s.msg.ID)
	s.mu.Unlock()
	if trackID != current || position < 0 {
		return nil
	}
	return s.drive("set-position", func(p Player) error {
		return p.Seek(time.Duration(position) * time.Microsecond)
	})
}

func (s *Server) OpenUri(uri string) *dbus.Error {
	return dbus.MakeFailedError(fmt.Errorf("opening URIs is not supported"))
}

// drive runs fn on the current player and reports the new status.
func (s *Server) drive(op string, fn func(Player) error) *dbus.Error {
	s.mu.Lock()
	p := s.player
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	if err := fn(p); err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("mpris")
		return dbus.MakeFailedError(err)
	}
	s.Refresh()
	return nil
}

// --- org.freedesktop.DBus.Properties ---

func (s *Server) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	props, derr := s.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := props[prop]
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %s.%s", iface, prop))
	}
	return v, nil
}

func (s *Server) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	switch iface {
	case rootIface:
		return map[string]dbus.Variant{
			"CanQuit":             dbus.MakeVariant(true),
			"CanRaise":            dbus.MakeVariant(false),
			"HasTrackList":        dbus.MakeVariant(false),
			"Identity":            dbus.MakeVariant("bmchat"),
			"DesktopEntry":        dbus.MakeVariant(""),
			"SupportedUriSchemes": dbus.MakeVariant([]string{}),
			"SupportedMimeTypes":  dbus.MakeVariant([]string{}),
		}, nil
	case playerIface:
		s.mu.Lock()
		defer s.mu.Unlock()
		var pos int64
		if s.player != nil {
			pos = s.player.Snapshot().Position.Microseconds()
		}
		has := s.player != nil
		return map[string]dbus.Variant{
			"PlaybackStatus": dbus.MakeVariant(s.playbackStatusLocked()),
			"LoopStatus":     dbus.MakeVariant("None"),
			"Rate":           dbus.MakeVariant(1.0),
			"Shuffle":        dbus.MakeVariant(false),
			"Metadata":       dbus.MakeVariant(s.metadataLocked()),
			"Volume":         dbus.MakeVariant(1.0),
			"Position":       dbus.MakeVariant(pos),
			"MinimumRate":    dbus.MakeVariant(1.0),
			"MaximumRate":    dbus.MakeVariant(1.0),
			"CanGoNext":      dbus.MakeVariant(false),
			"CanGoPrevious":  dbus.MakeVariant(false),
			"CanPlay":        dbus.MakeVariant(has),
			"CanPause":       dbus.MakeVariant(has),
			"CanSeek":        dbus.MakeVariant(has),
			"CanControl":     dbus.MakeVariant(true),
		}, nil
	}
	return nil, dbus.MakeFailedError(fmt.Errorf("unknown interface %s", iface))
}

// Set rejects every write; rate and volume are fixed.
func (s *Server) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	switch prop {
	case "LoopStatus", "Shuffle":
		return nil
	}
	return dbus.MakeFailedError(fmt.Errorf("property %s.%s is not writable", iface, prop))
}

// --- helpers ---

func (s *Server) playbackStatusLocked() string {
	if s.player == nil {
		return "Stopped"
	}
	switch s.player.State() {
	case playback.Playing:
		return "Playing"
	case playback.Paused, playback.Opening:
		return "Paused"
	}
	return "Stopped"
}

func (s *Server) metadataLocked() map[string]dbus.Variant {
	if s.player == nil {
		return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrack)}
	}
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(s.msg.ID)),
		"xesam:title":   dbus.MakeVariant(fmt.Sprintf("%s message", s.msg.Kind)),
		"xesam:url":     dbus.MakeVariant(s.msg.URL),
	}
	if s.msg.AuthorID != "" {
		md["xesam:artist"] = dbus.MakeVariant([]string{s.msg.AuthorID})
	}
	if d := s.player.Snapshot().Duration; d > 0 {
		md["mpris:length"] = dbus.MakeVariant(d.Microseconds())
	}
	return md
}

func (s *Server) emitLocked(changed map[string]any) {
	if s.conn == nil {
		return
	}
	err := s.conn.Emit(objectPath, propsIface+".PropertiesChanged", playerIface, changed, []string{})
	if err != nil {
		s.log.Debug().Err(err).Msg("emit PropertiesChanged")
	}
}

// trackPath turns a message ID into a valid object path element.
func trackPath(id string) dbus.ObjectPath {
	if id == "" {
		return noTrack
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, id)
	return dbus.ObjectPath("/org/bmchat/message/m" + clean)
}
