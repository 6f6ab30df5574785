package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bmchat/media"

	"github.com/BurntSushi/toml"
)

// messageFile is the layout of a messages TOML file:
//
//	[[message]]
//	kind = "voice"
//	url = "https://example.com/a.mp3"
//	author = "alice"
//	duration = "12s"
//	status = "seen"
//	created = 2024-05-01T09:30:00Z
//	samples = [0.1, 0.5, 0.9]
type messageFile struct {
	Messages []messageEntry `toml:"message"`
}

type messageEntry struct {
	ID       string            `toml:"id"`
	Kind     string            `toml:"kind"`
	URL      string            `toml:"url"`
	Author   string            `toml:"author"`
	Duration string            `toml:"duration"`
	Status   string            `toml:"status"`
	Created  time.Time         `toml:"created"`
	Samples  []float64         `toml:"samples"`
	Headers  map[string]string `toml:"headers"`
}

// loadMessages reads the conversation shown by the demo.
func loadMessages(path string) ([]media.Message, error) {
	var f messageFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("messages file %s does not exist", path)
		}
		return nil, fmt.Errorf("could not decode messages file: %w", err)
	}
	if len(f.Messages) == 0 {
		return nil, fmt.Errorf("no [[message]] in %s", path)
	}

	out := make([]media.Message, 0, len(f.Messages))
	for i, e := range f.Messages {
		m, err := e.message()
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i+1, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (e messageEntry) message() (media.Message, error) {
	if e.URL == "" {
		return media.Message{}, errors.New("url is required")
	}
	kind := media.Audio
	if e.Kind != "" {
		k, ok := media.ParseKind(e.Kind)
		if !ok {
			return media.Message{}, fmt.Errorf("unknown kind %q", e.Kind)
		}
		kind = k
	}
	var d time.Duration
	if e.Duration != "" {
		var err error
		if d, err = time.ParseDuration(e.Duration); err != nil {
			return media.Message{}, fmt.Errorf("invalid duration: %w", err)
		}
	}
	return media.NewMessage(media.Message{
		ID:        e.ID,
		Kind:      kind,
		URL:       e.URL,
		AuthorID:  e.Author,
		Duration:  d,
		Samples:   e.Samples,
		Status:    media.ParseStatus(e.Status),
		CreatedAt: e.Created,
		Headers:   e.Headers,
	}), nil
}

// sampleMessages is the conversation shown when no file is given.
func sampleMessages(userID string) []media.Message {
	now := time.Now()
	return []media.Message{
		media.NewMessage(media.Message{
			Kind:      media.Audio,
			URL:       "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			AuthorID:  "friend",
			Status:    media.Seen,
			CreatedAt: now.Add(-12 * time.Minute),
		}),
		media.NewMessage(media.Message{
			Kind:      media.Audio,
			URL:       "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
			AuthorID:  userID,
			Duration:  6 * time.Minute,
			Samples:   []float64{0.2, 0.4, 0.8, 0.6, 0.9, 0.3, 0.5, 0.7, 0.4, 0.2, 0.6, 0.8, 0.5, 0.3, 0.1},
			Status:    media.Delivered,
			CreatedAt: now.Add(-5 * time.Minute),
		}),
		media.NewMessage(media.Message{
			Kind:      media.Video,
			URL:       "https://test-videos.co.uk/vids/bigbuckbunny/mp4/h264/360/Big_Buck_Bunny_360_10s_1MB.mp4",
			AuthorID:  "friend",
			Duration:  10 * time.Second,
			Status:    media.Sent,
			CreatedAt: now.Add(-time.Minute),
		}),
	}
}
