package playback

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"bmchat/media"

	"github.com/go-resty/resty/v2"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
)

// SpeakerRate is the output rate every audio bubble is resampled to.
const SpeakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker opens the audio device once per process; all bubbles share it.
func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(SpeakerRate, SpeakerRate.N(time.Second/30))
	})
	return speakerErr
}

// AudioOption configures an AudioSource.
type AudioOption func(*AudioSource)

// WithClient replaces the HTTP client used to fetch the media.
func WithClient(c *resty.Client) AudioOption {
	return func(a *AudioSource) { a.client = c }
}

// WithVolume sets the initial volume in beep's log2 scale (0 is unchanged).
func WithVolume(v float64) AudioOption {
	return func(a *AudioSource) { a.vol = v }
}

// WithAudioLogger sets the logger.
func WithAudioLogger(l zerolog.Logger) AudioOption {
	return func(a *AudioSource) { a.log = l }
}

// AudioSource plays a remote audio file through the shared speaker. The
// file is fetched whole, then decoded from memory so it stays seekable.
type AudioSource struct {
	url     string
	headers map[string]string
	client  *resty.Client
	vol     float64
	log     zerolog.Logger

	// guarded by speaker.Lock
	streamer beep.StreamSeekCloser
	format   beep.Format
	output   beep.Streamer
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	ended    bool
}

// NewAudioSource prepares a source for rawURL. headers are sent with the fetch.
func NewAudioSource(rawURL string, headers map[string]string, opts ...AudioOption) *AudioSource {
	a := &AudioSource{
		url:     rawURL,
		headers: headers,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = resty.New()
	}
	return a
}

// Open fetches and decodes the file and hooks it up to the speaker, paused.
func (a *AudioSource) Open(ctx context.Context) (time.Duration, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeaders(a.headers).
		Get(a.url)
	if err != nil {
		return 0, &media.OpenError{URL: a.url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, &media.OpenError{URL: a.url, Err: &media.HTTPStatusError{Code: resp.StatusCode()}}
	}

	ext := audioExt(a.url, resp.Header().Get("Content-Type"))
	streamer, format, err := decodeAudio(resp.Body(), ext)
	if err != nil {
		return 0, &media.OpenError{URL: a.url, Err: err}
	}
	if err := initSpeaker(); err != nil {
		streamer.Close()
		return 0, &media.OpenError{URL: a.url, Err: fmt.Errorf("init speaker: %w", err)}
	}

	var out beep.Streamer = streamer
	if format.SampleRate != SpeakerRate {
		out = beep.Resample(4, format.SampleRate, SpeakerRate, streamer)
	}

	speaker.Lock()
	a.streamer = streamer
	a.format = format
	a.output = out
	a.ctrl = &beep.Ctrl{Streamer: a.sequenceLocked(), Paused: true}
	a.volume = &effects.Volume{Streamer: a.ctrl, Base: 2, Volume: a.vol}
	speaker.Unlock()
	speaker.Play(a.volume)

	d := format.SampleRate.D(streamer.Len())
	a.log.Debug().Str("url", a.url).Str("format", ext).Dur("duration", d).Msg("audio opened")
	return d, nil
}

// sequenceLocked appends the end marker. Callers hold speaker.Lock; the
// marker callback itself runs on the speaker goroutine.
func (a *AudioSource) sequenceLocked() beep.Streamer {
	a.ended = false
	return beep.Seq(a.output, beep.Callback(func() { a.ended = true }))
}

func (a *AudioSource) Play() error {
	speaker.Lock()
	if a.ctrl == nil {
		speaker.Unlock()
		return fmt.Errorf("audio source not open")
	}
	replay := a.ended
	if replay {
		// The speaker dropped the finished chain, hand it a fresh one.
		a.ctrl.Streamer = a.sequenceLocked()
	}
	a.ctrl.Paused = false
	speaker.Unlock()

	if replay {
		speaker.Play(a.volume)
	}
	return nil
}

func (a *AudioSource) Pause() error {
	speaker.Lock()
	defer speaker.Unlock()
	if a.ctrl == nil {
		return fmt.Errorf("audio source not open")
	}
	a.ctrl.Paused = true
	return nil
}

func (a *AudioSource) Seek(pos time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()
	if a.streamer == nil {
		return fmt.Errorf("audio source not open")
	}
	n := a.format.SampleRate.N(pos)
	n = min(n, a.streamer.Len()-1)
	n = max(n, 0)
	return a.streamer.Seek(n)
}

func (a *AudioSource) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if a.streamer == nil {
		return 0
	}
	return a.format.SampleRate.D(a.streamer.Position())
}

func (a *AudioSource) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return a.ctrl != nil && !a.ctrl.Paused && !a.ended
}

func (a *AudioSource) Ended() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return a.ended
}

// SetVolume changes the volume of this bubble only.
func (a *AudioSource) SetVolume(v float64) {
	speaker.Lock()
	defer speaker.Unlock()
	a.vol = v
	if a.volume != nil {
		a.volume.Volume = v
	}
}

// Close detaches the stream from the speaker and frees the decoder.
func (a *AudioSource) Close() error {
	speaker.Lock()
	s := a.streamer
	if a.ctrl != nil {
		a.ctrl.Streamer = nil
		a.ctrl.Paused = true
	}
	a.streamer, a.output, a.ctrl, a.volume = nil, nil, nil, nil
	speaker.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

// memFile lets the decoders seek inside a fully downloaded body.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func decodeAudio(data []byte, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	r := memFile{bytes.NewReader(data)}
	switch ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	case ".ogg", ".oga":
		return vorbis.Decode(r)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", ext)
}

var audioTypes = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/wav":    ".wav",
	"audio/wave":   ".wav",
	"audio/x-wav":  ".wav",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/ogg":    ".ogg",
	"audio/vorbis": ".ogg",
}

// audioExt picks the decoder from the URL's extension, falling back to the
// response content type.
func audioExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".mp3", ".wav", ".flac", ".ogg", ".oga":
			return ext
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := audioTypes[mt]; ok {
			return ext
		}
	}
	return ""
}
