package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Granted always allows storage access. Desktop platforms have no runtime
// storage permission.
type Granted struct{}

func (Granted) Request(context.Context) error { return nil }

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) error

func (f PermissionFunc) Request(ctx context.Context) error { return f(ctx) }

// WritableDir grants access only when Dir can be written to.
type WritableDir struct {
	Dir DirResolver
}

func (w WritableDir) Request(context.Context) error {
	dir, err := w.Dir.Resolve()
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".bmchat-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// PlatformDirs resolves the user's download directory, creating it if
// needed. Override wins when set; a leading "~/" is expanded.
type PlatformDirs struct {
	Override string
}

func (p PlatformDirs) Resolve() (string, error) {
	dir, err := p.lookup()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create download directory: %w", err)
	}
	return dir, nil
}

func (p PlatformDirs) lookup() (string, error) {
	if p.Override != "" {
		return expandHome(p.Override)
	}
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		if xdg := os.Getenv("XDG_DOWNLOAD_DIR"); xdg != "" {
			return expandHome(xdg)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		return filepath.Join(home, p[1:]), nil
	}
	if p == "" {
		return "", errors.New("empty directory")
	}
	return p, nil
}

// StaticDir resolves to a fixed directory without touching it.
type StaticDir string

func (s StaticDir) Resolve() (string, error) {
	if s == "" {
		return "", errors.New("empty directory")
	}
	return string(s), nil
}
