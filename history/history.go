// Package history remembers where downloaded messages were saved, so a
// bubble can show them as already downloaded after a restart.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one saved download.
//
// Entry 是一次已保存的下载记录。
type Entry struct {
	MessageID string    `json:"message_id"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	SavedAt   time.Time `json:"saved_at"`
}

// data holds what is stored in the history file.
//
// data 保存存储在历史文件中的数据。
type data struct {
	Downloads map[string]Entry `json:"downloads"`
}

// Store is a JSON file of downloads keyed by message ID. A disabled store
// records nothing and finds nothing.
type Store struct {
	mu      sync.Mutex
	path    string
	enabled bool
	now     func() time.Time
}

// Open returns the store at path. A leading "~/" is expanded.
//
// Open 返回位于 path 的存储，并展开开头的 "~/"。
func Open(path string, enabled bool) (*Store, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if enabled && path == "" {
		return nil, errors.New("history enabled without a file")
	}
	return &Store{path: path, enabled: enabled, now: time.Now}, nil
}

// Path is the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// load reads the history file. A missing or empty file is an empty history.
//
// load 读取历史文件，文件不存在或为空时返回空记录。
func (s *Store) load() (*data, error) {
	d := &data{Downloads: map[string]Entry{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read history file: %w", err)
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("could not decode history file: %w", err)
	}
	if d.Downloads == nil {
		d.Downloads = map[string]Entry{}
	}
	return d, nil
}

// save writes the history file, creating its directory.
//
// save 写入历史文件，并在需要时创建目录。
func (s *Store) save(d *data) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create history directory: %w", err)
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode history: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("could not write history file: %w", err)
	}
	return nil
}

// Record remembers that the message id was saved to path.
func (s *Store) Record(id, url, path string) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return err
	}
	d.Downloads[id] = Entry{MessageID: id, URL: url, Path: path, SavedAt: s.now()}
	return s.save(d)
}

// Lookup returns where id was saved. Entries whose file is gone are
// reported as missing.
//
// Lookup 返回 id 的保存位置，文件已被删除的记录视为不存在。
func (s *Store) Lookup(id string) (string, bool) {
	if !s.enabled {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return "", false
	}
	e, ok := d.Downloads[id]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(e.Path); err != nil {
		return "", false
	}
	return e.Path, true
}

// Entries lists every download, oldest first.
func (s *Store) Entries() ([]Entry, error) {
	if !s.enabled {
		return []Entry{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(d.Downloads))
	for _, e := range d.Downloads {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].SavedAt.Before(out[j].SavedAt)
	})
	return out, nil
}

// Forget drops the entry of id.
func (s *Store) Forget(id string) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := d.Downloads[id]; !ok {
		return nil
	}
	delete(d.Downloads, id)
	return s.save(d)
}
