package track

import (
	"math"
	"testing"
	"time"
)

func TestFraction(t *testing.T) {
	tests := []struct {
		name     string
		x, width float64
		want     float64
	}{
		{"start", 0, 100, 0},
		{"middle", 50, 100, 0.5},
		{"end", 100, 100, 1},
		{"negative offset", -10, 100, 0},
		{"past end", 150, 100, 1},
		{"zero width", 10, 0, 0},
		{"negative width", 10, -5, 0},
		{"nan", math.NaN(), 100, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fraction(tc.x, tc.width); got != tc.want {
				t.Errorf("Fraction(%v, %v) = %v, want %v", tc.x, tc.width, got, tc.want)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	d := 90 * time.Second
	if got := Target(45, 90, d); got != 45*time.Second {
		t.Errorf("Target middle = %v", got)
	}
	if got := Target(10, 0, d); got != 0 {
		t.Errorf("zero width target = %v, want 0", got)
	}
	if got := Target(10, 30, 0); got != 0 {
		t.Errorf("zero duration target = %v, want 0", got)
	}
	// 1/3 of 1s is 333.33ms.
	if got := Target(1, 3, time.Second); got != 333*time.Millisecond {
		t.Errorf("Target rounding = %v, want 333ms", got)
	}
	if got := Target(2, 3, time.Second); got != 667*time.Millisecond {
		t.Errorf("Target rounding = %v, want 667ms", got)
	}
}

func TestTargetMonotonic(t *testing.T) {
	const width = 37.0
	for _, d := range []time.Duration{time.Millisecond, 1234 * time.Millisecond, 3 * time.Minute} {
		prev := time.Duration(-1)
		for x := 0.0; x <= width; x += 0.5 {
			got := Target(x, width, d)
			if got < prev {
				t.Fatalf("d=%v: Target(%v) = %v < previous %v", d, x, got, prev)
			}
			want := time.Duration(float64(d) * (x / width)).Round(time.Millisecond)
			if got != want {
				t.Fatalf("d=%v: Target(%v) = %v, want %v", d, x, got, want)
			}
			if got < 0 || got > d.Round(time.Millisecond) {
				t.Fatalf("d=%v: Target(%v) = %v out of range", d, x, got)
			}
			prev = got
		}
	}
}
