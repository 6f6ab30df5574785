package track

import "time"

// Fraction maps a pointer offset within a track of the given width to a
// position in [0,1]. A zero-width track always yields 0.
func Fraction(x, width float64) float64 {
	if width <= 0 {
		return 0
	}
	return clampUnit(x / width)
}

// Target is the playback timestamp under pointer offset x, rounded to the
// nearest millisecond.
func Target(x, width float64, d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * Fraction(x, width)).Round(time.Millisecond)
}
