package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecScope/telemetry"
)

var t0 = time.Unix(1700000000, 0)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func window(times, values []float64) telemetry.Window {
	w := make(telemetry.Window, len(values))
	for i, v := range values {
		w[i] = telemetry.Sample{At: at(times[i]), X: v}
	}
	return w
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestPeakSeparation(t *testing.T) {
	w := window(seq(7), []float64{0, 5, 1, 8, 2, 9, 1})

	peaks := FindPeaks(w, telemetry.Magnitude, at(0), at(6), 2*time.Second)
	assert.Equal(t, []Peak{{At: at(1), Value: 5}, {At: at(5), Value: 9}}, peaks)

	pl := NewProjector(Options{Retention: 30 * time.Second, Separation: 2 * time.Second}).
		Project(w, telemetry.X, Canvas{Width: 300, Height: 120})
	require.Len(t, pl.Peaks, 2)
	assert.Equal(t, "5.0", pl.Peaks[0].Text)
	assert.Equal(t, "9.0", pl.Peaks[1].Text)
}

func TestPeakDelay(t *testing.T) {
	w := window(seq(7), []float64{0, 5, 1, 8, 2, 9, 1})
	opts := DefaultOptions()
	opts.Delay = 2 * time.Second

	pl := NewProjector(opts).Project(w, telemetry.X, Canvas{Width: 300, Height: 120})
	require.Len(t, pl.Peaks, 1)
	assert.Equal(t, Peak{At: at(3), Value: 8}, pl.Peaks[0].Peak)
}

func TestLocalMaxima(t *testing.T) {
	w := window(seq(6), []float64{9, 0.5, 1, 0.2, 3, 3})
	assert.Empty(t, LocalMaxima(w, telemetry.X, NoiseFloor), "edges, plateaus and noise never qualify")

	w = window(seq(3), []float64{-10, -2, -10})
	assert.Empty(t, LocalMaxima(w, telemetry.X, NoiseFloor))
}

func TestSelectPeaksTieBreak(t *testing.T) {
	kept := SelectPeaks([]Peak{{At: at(0), Value: 4}, {At: at(1), Value: 4}, {At: at(5), Value: 2}}, 2*time.Second)
	assert.Equal(t, []Peak{{At: at(0), Value: 4}, {At: at(5), Value: 2}}, kept)
}

func TestAllZeroWindow(t *testing.T) {
	w := window(seq(5), []float64{0, 0, 0, 0, 0})
	s := NewScale(w.Values(telemetry.Magnitude))
	assert.Equal(t, Scale{}, s)
	assert.Equal(t, MinSpan, s.Span())

	pl := NewProjector(DefaultOptions()).Project(w, telemetry.Magnitude, Canvas{Width: 100, Height: 120})
	for _, p := range pl.Points {
		assert.Equal(t, 100.0, p.Y)
	}
	assert.Empty(t, pl.Peaks)
	assert.Equal(t, "0.0", pl.Axis.MaxLabel)
	assert.Equal(t, "0.0", pl.Axis.MinLabel)
	assert.Equal(t, 100.0, pl.Axis.ZeroY)
}

func TestScaleIncludesZero(t *testing.T) {
	assert.Equal(t, Scale{Min: 0, Max: 50}, NewScale([]float64{20, 50}))
	assert.Equal(t, Scale{Min: -30, Max: 0}, NewScale([]float64{-30, -5}))
	assert.Equal(t, []float64{0, 10, 20, -10}, Scale{Min: -15, Max: 25}.Grid(100))
}

func TestGridIsBounded(t *testing.T) {
	assert.Equal(t, []float64{0, 100, 200, -100}, Scale{Min: -150, Max: 250}.Grid(5))

	done := make(chan []float64, 1)
	go func() { done <- Scale{Min: 0, Max: 1e17}.Grid(10) }()
	select {
	case g := <-done:
		assert.LessOrEqual(t, len(g), 12)
		assert.Equal(t, 0.0, g[0])
	case <-time.After(3 * time.Second):
		t.Fatal("Grid did not return")
	}

	assert.Len(t, Scale{Min: 0, Max: 1e5}.Grid(10), 10)
	assert.Nil(t, Scale{Min: 0, Max: math.Inf(1)}.Grid(10))
}

func TestProjectMapping(t *testing.T) {
	w := window([]float64{0, 5, 10}, []float64{0, 25, 50})
	opts := DefaultOptions()
	opts.Retention = 10 * time.Second

	pl := NewProjector(opts).Project(w, telemetry.X, Canvas{Width: 300, Height: 120})
	assert.Equal(t, 100.0, pl.PlotHeight)
	assert.Equal(t, []Point{{0, 100}, {150, 50}, {300, 0}}, pl.Points)
	assert.Equal(t, "50.0", pl.Axis.MaxLabel)
	assert.InDeltaSlice(t, []float64{100, 80, 60, 40, 20}, pl.Axis.GridY, 1e-9)
}

func TestProjectSkipsSamplesBeforeWindow(t *testing.T) {
	w := window([]float64{0, 15, 20}, []float64{7, 1, 2})
	opts := DefaultOptions()
	opts.Retention = 10 * time.Second

	pl := NewProjector(opts).Project(w, telemetry.X, Canvas{Width: 100, Height: 120})
	require.Len(t, pl.Points, 2)
	assert.Equal(t, 50.0, pl.Points[0].X)
}

func TestPeakLabelPlacement(t *testing.T) {
	w := window(
		[]float64{0, 1, 2, 4, 5, 6, 9, 9.5, 10},
		[]float64{0, 5, 0, 0, 6, 0, 0, 7, 0},
	)
	opts := DefaultOptions()
	opts.Retention = 10 * time.Second
	opts.LabelWidth = 50

	pl := NewProjector(opts).Project(w, telemetry.X, Canvas{Width: 100, Height: 120})
	require.Len(t, pl.Peaks, 3)

	var anchors []Anchor
	var rows []int
	for _, p := range pl.Peaks {
		anchors = append(anchors, p.Anchor)
		rows = append(rows, p.Row)
	}
	assert.Equal(t, []Anchor{AnchorWest, AnchorCenter, AnchorEast}, anchors)
	assert.Equal(t, []int{0, 1, 0}, rows)
	assert.InDelta(t, 10.0, pl.Peaks[0].X, 1e-9)
}

func TestProjectAllSharedScale(t *testing.T) {
	w := telemetry.Window{
		{At: at(0), X: 40, Y: -20},
		{At: at(1), X: 10, Y: 5},
	}
	cs := []telemetry.Channel{telemetry.X, telemetry.Y}
	cv := Canvas{Width: 100, Height: 120}

	own := NewProjector(DefaultOptions()).ProjectAll(w, cs, cv)
	require.Len(t, own, 2)
	assert.Equal(t, Scale{Min: 0, Max: 40}, own[0].Scale)
	assert.Equal(t, Scale{Min: -20, Max: 5}, own[1].Scale)

	opts := DefaultOptions()
	opts.SharedScale = true
	shared := NewProjector(opts).ProjectAll(w, cs, cv)
	assert.Equal(t, Scale{Min: -20, Max: 40}, shared[0].Scale)
	assert.Equal(t, shared[0].Scale, shared[1].Scale)
}

func TestProjectEmptyWindow(t *testing.T) {
	pl := NewProjector(DefaultOptions()).Project(nil, telemetry.Magnitude, Canvas{Width: 100, Height: 10})
	assert.Empty(t, pl.Points)
	assert.Zero(t, pl.PlotHeight)
}
