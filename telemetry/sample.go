package telemetry

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Sample is one reading of the vector field. The magnitude is always
// derived from the components.
type Sample struct {
	At time.Time
	X  float64
	Y  float64
	Z  float64
}

func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

type Channel int

const (
	Magnitude Channel = iota
	X
	Y
	Z
)

var Channels = []Channel{Magnitude, X, Y, Z}

func (c Channel) String() string {
	switch c {
	case Magnitude:
		return "magnitude"
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

func (c Channel) Value(s Sample) float64 {
	switch c {
	case X:
		return s.X
	case Y:
		return s.Y
	case Z:
		return s.Z
	}
	return s.Magnitude()
}

func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "magnitude", "mag", "speed":
		return Magnitude, nil
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

func ParseChannels(names []string) ([]Channel, error) {
	out := make([]Channel, 0, len(names))
	for _, n := range names {
		c, err := ParseChannel(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Readout is the latest scalar values; the zero value means no data.
type Readout struct {
	Valid bool
	Speed float64
	X     float64
	Y     float64
	Z     float64
}

var NoData = Readout{}

func (s Sample) Readout() Readout {
	return Readout{Valid: true, Speed: s.Magnitude(), X: s.X, Y: s.Y, Z: s.Z}
}

func (r Readout) String() string {
	if !r.Valid {
		return "--"
	}
	return fmt.Sprintf("%.2f m/s  X: %.2f  Y: %.2f  Z: %.2f", r.Speed, r.X, r.Y, r.Z)
}
