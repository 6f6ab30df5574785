// Package playback owns the single player session behind a bubble and
// publishes its state as a stream of media.Snapshot values.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"bmchat/media"

	"github.com/rs/zerolog"
)

// DefaultTickInterval matches the refresh rate of the player bar.
const DefaultTickInterval = 200 * time.Millisecond

// State is the lifecycle of a controller.
type State int

const (
	Idle State = iota
	Opening
	Playing
	Paused
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Source is one audio or video stream. Open is called at most once per
// successful session and must release whatever it acquired when it fails.
// Close must be safe to call after a failed Open.
type Source interface {
	Open(ctx context.Context) (time.Duration, error)
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	// Playing is false once the source is paused or has run to its end.
	// A failed query repeats the last answer.
	Playing() bool
	// Ended is true once playback has run to the end of the media.
	Ended() bool
	Close() error
}

// lengthReporter is implemented by sources that may learn their duration
// only after Open returned, such as streams mpv loads lazily.
type lengthReporter interface {
	Duration() time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithDurationHint seeds the duration until the source reports the real one.
func WithDurationHint(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.duration = d
		}
	}
}

// WithTickInterval sets how often snapshots are published while playing.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger transient failures are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller drives a Source through Idle, Opening, Playing, Paused, Failed
// and Disposed. All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	src      Source
	state    State
	opened   bool
	measured bool // duration came from the source
	duration time.Duration
	err      error
	interval time.Duration
	log      zerolog.Logger

	subs       map[int]chan media.Snapshot
	nextSub    int
	stopTick   context.CancelFunc
	cancelOpen context.CancelFunc
}

// New wraps src. Nothing is fetched until the first Play.
func New(src Source, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		interval: DefaultTickInterval,
		log:      zerolog.Nop(),
		subs:     make(map[int]chan media.Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the open failure once the controller is Failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Snapshot returns the current player state.
func (c *Controller) Snapshot() media.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot, seeded
// with the current one. The returned func drops the subscription and closes
// the channel; Close does the same for every subscriber.
func (c *Controller) Subscribe() (<-chan media.Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan media.Snapshot, 1)
	if c.state == Disposed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			drainAndClose(sub)
		}
	}
}

// Play opens the source on first use, or resumes it when paused. Opening
// happens in the background; its result is published as a snapshot.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Idle:
		c.beginOpenLocked(ctx)
	case Paused:
		if err := c.src.Play(); err != nil {
			return c.transientLocked("play", err)
		}
		c.state = Playing
		c.startTickerLocked()
		c.publishLocked()
	}
	return nil
}

// Retry reopens a source whose first open failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Failed {
		return nil
	}
	c.err = nil
	c.beginOpenLocked(ctx)
	return nil
}

// Pause pauses a playing source.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Playing {
		return nil
	}
	if err := c.src.Pause(); err != nil {
		return c.transientLocked("pause", err)
	}
	c.state = Paused
	c.stopTickerLocked()
	c.publishLocked()
	return nil
}

// Toggle pauses when playing and plays otherwise.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State() == Playing {
		return c.Pause()
	}
	return c.Play(ctx)
}

// Seek moves to pos, clamped to the known duration. It does nothing until
// the source has been opened.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened || c.state == Disposed {
		return nil
	}
	if pos < 0 {
		pos = 0
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	if err := c.src.Seek(pos); err != nil {
		return c.transientLocked("seek", err)
	}
	c.publishLocked()
	return nil
}

// Close disposes the controller and releases the source. A source that is
// still opening has its Open cancelled and is released once Open returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Disposed {
		return nil
	}
	opening := c.state == Opening
	c.state = Disposed
	c.stopTickerLocked()
	if c.cancelOpen != nil {
		c.cancelOpen()
		c.cancelOpen = nil
	}
	for id, ch := range c.subs {
		delete(c.subs, id)
		drainAndClose(ch)
	}
	if opening {
		return nil
	}
	return c.src.Close()
}

func (c *Controller) beginOpenLocked(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelOpen = cancel
	c.state = Opening
	c.publishLocked()
	go c.open(ctx)
}

func (c *Controller) open(ctx context.Context) {
	d, err := c.src.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelOpen != nil {
		c.cancelOpen()
		c.cancelOpen = nil
	}
	if c.state == Disposed {
		if cerr := c.src.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("release source after dispose")
		}
		return
	}
	if err != nil {
		var oe *media.OpenError
		if !errors.As(err, &oe) {
			err = &media.OpenError{Err: err}
		}
		c.state = Failed
		c.err = err
		c.log.Error().Err(err).Msg("open source")
		c.publishLocked()
		return
	}

	c.opened = true
	if d > 0 {
		c.duration = d
		c.measured = true
	}
	if err := c.src.Play(); err != nil {
		c.state = Paused
		c.log.Warn().Err(err).Msg("start playback")
		c.publishLocked()
		return
	}
	c.state = Playing
	c.startTickerLocked()
	c.publishLocked()
}

func (c *Controller) startTickerLocked() {
	if c.stopTick != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopTick = cancel
	go c.tick(ctx, c.interval)
}

func (c *Controller) stopTickerLocked() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

func (c *Controller) tick(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.poll(ctx)
		}
	}
}

func (c *Controller) poll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.state != Playing {
		return
	}
	if !c.measured {
		if lr, ok := c.src.(lengthReporter); ok {
			if d := lr.Duration(); d > 0 {
				c.duration = d
				c.measured = true
			}
		}
	}
	switch {
	case c.src.Ended():
		// Rewind and wait for the next Play.
		c.state = Paused
		c.stopTickerLocked()
		if err := c.src.Seek(0); err != nil {
			c.log.Warn().Err(err).Msg("rewind after end")
		}
	case !c.src.Playing():
		// Paused from outside, e.g. in the mpv window.
		c.state = Paused
		c.stopTickerLocked()
	}
	c.publishLocked()
}

func (c *Controller) transientLocked(op string, err error) error {
	terr := &media.TransientError{Op: op, Err: err}
	c.log.Warn().Err(err).Str("op", op).Str("state", c.state.String()).Msg("playback")
	return terr
}

func (c *Controller) snapshotLocked() media.Snapshot {
	s := media.Snapshot{
		Duration:  c.duration,
		Playing:   c.state == Playing,
		Buffering: c.state == Opening,
	}
	if c.opened && c.state != Disposed {
		s.Position = c.src.Position()
	}
	return s.Clamp()
}

// publishLocked replaces whatever a subscriber has not read yet, so readers
// always see the newest snapshot and never block the controller.
func (c *Controller) publishLocked() {
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// drainAndClose drops an unread snapshot so a closed subscription never
// delivers stale state.
func drainAndClose(ch chan media.Snapshot) {
	select {
	case <-ch:
	default:
	}
	close(ch)
}
