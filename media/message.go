// Package media holds the values shared by every bubble: the message being
// shown, the player snapshots it is driven by and the outcome of a download.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects which bubble renders a message.
type Kind int

const (
	Audio Kind = iota
	Video
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// ParseKind maps the config spelling of a kind back to its value.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "audio", "voice":
		return Audio, true
	case "video":
		return Video, true
	}
	return Audio, false
}

// Status is the delivery state of a message.
type Status int

const (
	Sending Status = iota
	Sent
	Delivered
	Seen
	Failed
)

func (s Status) String() string {
	switch s {
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	case Delivered:
		return "delivered"
	case Seen:
		return "seen"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// ParseStatus accepts the names produced by String. Unknown names map to Sent.
func ParseStatus(s string) Status {
	switch s {
	case "sending":
		return Sending
	case "delivered":
		return Delivered
	case "seen":
		return Seen
	case "error", "failed":
		return Failed
	default:
		return Sent
	}
}

// Message identifies a remote audio or video item in a chat.
// It is supplied by the host and never mutated by a bubble.
type Message struct {
	ID        string
	Kind      Kind
	URL       string
	AuthorID  string
	Duration  time.Duration // hint, 0 when unknown
	Samples   []float64     // precomputed amplitudes, audio only
	Status    Status
	CreatedAt time.Time
	Headers   map[string]string
}

// NewMessage fills in an ID and creation time when the caller left them empty.
func NewMessage(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Kind == Video {
		m.Samples = nil
	}
	if len(m.Samples) > 0 {
		m.Samples = append([]float64(nil), m.Samples...)
	}
	if len(m.Headers) > 0 {
		h := make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			h[k] = v
		}
		m.Headers = h
	}
	return m
}

// SentBy reports whether userID authored the message.
func (m Message) SentBy(userID string) bool {
	return userID != "" && m.AuthorID == userID
}
