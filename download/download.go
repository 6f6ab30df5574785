// Package download saves a bubble's media to a local file.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"bmchat/media"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrInFlight is returned when a download is already running on the same
// Downloader. No second fetch is started.
var ErrInFlight = errors.New("download already in progress")

// Permission asks whether the app may write to storage.
type Permission interface {
	Request(ctx context.Context) error
}

// DirResolver finds a writable directory for downloads.
type DirResolver interface {
	Resolve() (string, error)
}

// Option configures a Downloader.
type Option func(*Downloader)

func WithPermission(p Permission) Option {
	return func(d *Downloader) { d.perm = p }
}

func WithDirResolver(r DirResolver) Option {
	return func(d *Downloader) { d.dirs = r }
}

// WithClient replaces the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithClock replaces time.Now in file name generation.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) { d.now = now }
}

// WithDefaultExt sets the extension used when the URL has none.
func WithDefaultExt(ext string) Option {
	return func(d *Downloader) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.ext = ext
	}
}

// OnSuccess is called with the written path.
func OnSuccess(fn func(path string)) Option {
	return func(d *Downloader) { d.onSuccess = fn }
}

// OnError is called with a human readable reason.
func OnError(fn func(reason string)) Option {
	return func(d *Downloader) { d.onError = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Downloader) { d.log = l }
}

// Downloader fetches one file at a time. A bubble owns one Downloader.
type Downloader struct {
	perm      Permission
	dirs      DirResolver
	client    *resty.Client
	now       func() time.Time
	ext       string
	onSuccess func(string)
	onError   func(string)
	log       zerolog.Logger

	inFlight atomic.Bool
}

// New returns a Downloader with storage access granted, the platform
// download directory and a ".bin" fallback extension unless overridden.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		perm: Granted{},
		dirs: PlatformDirs{},
		now:  time.Now,
		ext:  ".bin",
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = resty.New()
	}
	return d
}

// InFlight reports whether a download is running.
func (d *Downloader) InFlight() bool {
	return d.inFlight.Load()
}

// Start runs Download in the background. It returns false when another
// download is already running.
func (d *Downloader) Start(ctx context.Context, rawURL string, headers map[string]string) bool {
	if !d.inFlight.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer d.inFlight.Store(false)
		d.run(ctx, rawURL, headers)
	}()
	return true
}

// Download fetches rawURL into the download directory. Every failure is
// reported through the outcome and the error callback; the returned error is
// only ErrInFlight.
func (d *Downloader) Download(ctx context.Context, rawURL string, headers map[string]string) (media.Outcome, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return media.Outcome{}, ErrInFlight
	}
	defer d.inFlight.Store(false)
	return d.run(ctx, rawURL, headers), nil
}

func (d *Downloader) run(ctx context.Context, rawURL string, headers map[string]string) media.Outcome {
	out := d.fetch(ctx, rawURL, headers)
	log := d.log.With().Str("url", rawURL).Logger()
	if out.OK() {
		log.Info().Str("path", out.Path).Msg("downloaded")
		if d.onSuccess != nil {
			d.onSuccess(out.Path)
		}
	} else {
		log.Warn().Err(out.Err).Msg("download failed")
		if d.onError != nil {
			d.onError(out.Reason())
		}
	}
	return out
}

func (d *Downloader) fetch(ctx context.Context, rawURL string, headers map[string]string) media.Outcome {
	if err := d.perm.Request(ctx); err != nil {
		return media.FailedWith(media.ErrPermissionDenied)
	}

	dir, err := d.dirs.Resolve()
	if err != nil || dir == "" {
		return media.FailedWith(media.ErrNoDirectory)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(rawURL)
	if err != nil {
		return media.FailedWith(fmt.Errorf("fetch: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return media.FailedWith(&media.HTTPStatusError{Code: resp.StatusCode()})
	}

	name := d.fileName(rawURL)
	f, err := createUnique(dir, name)
	if err != nil {
		return media.FailedWith(&media.WriteError{Path: filepath.Join(dir, name), Err: err})
	}
	target := f.Name()
	_, err = f.Write(resp.Body())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return media.FailedWith(&media.WriteError{Path: target, Err: err})
	}
	return media.Succeeded(target)
}

// maxSuffix bounds the "-N" names tried for one millisecond.
const maxSuffix = 100

// createUnique creates name in dir, or name-1, name-2, ... when another
// download already took it. Existing files are never truncated.
func createUnique(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = base + "-" + strconv.Itoa(i) + ext
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) && i < maxSuffix {
			continue
		}
		return f, err
	}
}

// fileName is the current time in milliseconds plus the URL's extension.
func (d *Downloader) fileName(rawURL string) string {
	ext := d.ext
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); e != "" && e != "." {
			ext = strings.ToLower(e)
		}
	}
	return strconv.FormatInt(d.now().UnixMilli(), 10) + ext
}
