package graph

import (
	"math"
)

const (
	MinSpan  = 10.0
	GridStep = 10.0
)

// Scale is the value range of a plot. It always contains zero and its
// span never drops below MinSpan, so projecting cannot divide by zero.
type Scale struct {
	Min float64
	Max float64
}

func NewScale(series ...[]float64) Scale {
	var s Scale
	for _, values := range series {
		for _, v := range values {
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
	}
	return s
}

func (s Scale) Union(o Scale) Scale {
	return Scale{Min: math.Min(s.Min, o.Min), Max: math.Max(s.Max, o.Max)}
}

func (s Scale) Span() float64 {
	if d := s.Max - s.Min; d >= MinSpan {
		return d
	}
	return MinSpan
}

// Y maps v onto [height, 0], top being the largest value.
func (s Scale) Y(v, height float64) float64 {
	return height - (v-s.Min)/s.Span()*height
}

// Grid returns the values of at most maxLines+2 grid lines: multiples of
// step from zero up to Max and down to Min, both exclusive except for
// zero. step starts at GridStep and grows tenfold until the range fits.
func (s Scale) Grid(maxLines int) []float64 {
	if math.IsInf(s.Max, 0) || math.IsInf(s.Min, 0) || math.IsNaN(s.Max) || math.IsNaN(s.Min) {
		return nil
	}
	if maxLines < 1 {
		maxLines = 1
	}
	step := GridStep
	for (math.Max(s.Max, 0)-math.Min(s.Min, 0))/step > float64(maxLines) {
		step *= 10
	}

	var out []float64
	for k := 0; float64(k)*step < s.Max; k++ {
		out = append(out, float64(k)*step)
	}
	for k := 1; -float64(k)*step > s.Min; k++ {
		out = append(out, -float64(k)*step)
	}
	return out
}
