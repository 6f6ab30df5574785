package media

import "time"

// Snapshot is the player state at one instant. A newer snapshot always
// supersedes an older one.
type Snapshot struct {
	Position  time.Duration
	Duration  time.Duration
	Playing   bool
	Buffering bool
}

// Clamp keeps Position inside [0, Duration] once the duration is known.
func (s Snapshot) Clamp() Snapshot {
	if s.Position < 0 {
		s.Position = 0
	}
	if s.Duration > 0 && s.Position > s.Duration {
		s.Position = s.Duration
	}
	return s
}

// Progress is Position/Duration in [0,1], or 0 while the duration is unknown.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
