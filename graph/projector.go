package graph

import (
	"fmt"
	"time"

	"vecScope/config"
	"vecScope/telemetry"
)

// minGridGap is the smallest distance in canvas units between two grid lines.
const minGridGap = 10.0

type Canvas struct {
	Width  float64
	Height float64
}

type Point struct {
	X float64
	Y float64
}

type Anchor int

const (
	AnchorCenter Anchor = iota
	AnchorWest
	AnchorEast
)

func (a Anchor) String() string {
	switch a {
	case AnchorWest:
		return "w"
	case AnchorEast:
		return "e"
	}
	return "center"
}

type Axis struct {
	MaxLabel string
	MinLabel string
	ZeroY    float64
	// GridY holds the y of every grid line inside the plot area.
	GridY []float64
}

type PeakLabel struct {
	Peak
	X      float64
	Y      float64
	Text   string
	Anchor Anchor
	Row    int
}

// Payload is everything needed to draw one channel.
type Payload struct {
	Channel    telemetry.Channel
	Scale      Scale
	PlotHeight float64
	Points     []Point
	Axis       Axis
	Peaks      []PeakLabel
}

type Options struct {
	Retention  time.Duration
	Separation time.Duration
	Delay      time.Duration

	LabelMargin float64
	LabelWidth  float64
	EdgeMargin  float64

	// SharedScale puts every channel of ProjectAll on one value range.
	SharedScale bool
}

func DefaultOptions() Options {
	return Options{
		Retention:   30 * time.Second,
		Separation:  2 * time.Second,
		LabelMargin: 20,
		LabelWidth:  30,
		EdgeMargin:  20,
	}
}

func OptionsFrom(cfg config.Config) Options {
	o := DefaultOptions()
	o.Retention = cfg.Retention
	o.Separation = cfg.PeakSeparation
	o.Delay = cfg.PeakDelay
	return o
}

type Projector struct {
	opts Options
}

func NewProjector(opts Options) *Projector {
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}
	return &Projector{opts: opts}
}

func (p *Projector) Options() Options { return p.opts }

// Project computes the geometry of channel c. Time runs from newest - retention
// at x = 0 to the newest sample at x = Width.
func (p *Projector) Project(w telemetry.Window, c telemetry.Channel, cv Canvas) Payload {
	return p.project(w, c, cv, NewScale(w.Values(c)))
}

func (p *Projector) ProjectAll(w telemetry.Window, cs []telemetry.Channel, cv Canvas) []Payload {
	var shared Scale
	if p.opts.SharedScale {
		for _, c := range cs {
			shared = shared.Union(NewScale(w.Values(c)))
		}
	}

	out := make([]Payload, 0, len(cs))
	for _, c := range cs {
		s := shared
		if !p.opts.SharedScale {
			s = NewScale(w.Values(c))
		}
		out = append(out, p.project(w, c, cv, s))
	}
	return out
}

func (p *Projector) project(w telemetry.Window, c telemetry.Channel, cv Canvas, s Scale) Payload {
	plot := cv.Height - p.opts.LabelMargin
	if plot < 0 {
		plot = 0
	}
	pl := Payload{
		Channel:    c,
		Scale:      s,
		PlotHeight: plot,
		Axis:       p.axis(s, plot),
	}

	newest, ok := w.Latest()
	if !ok {
		return pl
	}
	now := newest.At
	start := now.Add(-p.opts.Retention)
	x := func(t time.Time) float64 {
		return float64(t.Sub(start)) / float64(p.opts.Retention) * cv.Width
	}

	pl.Points = make([]Point, 0, len(w))
	for _, smp := range w {
		if smp.At.Before(start) {
			continue
		}
		pl.Points = append(pl.Points, Point{X: x(smp.At), Y: s.Y(c.Value(smp), plot)})
	}

	var rows []float64
	for _, pk := range FindPeaks(w, c, start, now.Add(-p.opts.Delay), p.opts.Separation) {
		lbl := PeakLabel{
			Peak: pk,
			X:    x(pk.At),
			Y:    s.Y(pk.Value, plot),
			Text: fmt.Sprintf("%.1f", pk.Value),
		}
		switch {
		case lbl.X < p.opts.EdgeMargin:
			lbl.Anchor = AnchorWest
		case lbl.X > cv.Width-p.opts.EdgeMargin:
			lbl.Anchor = AnchorEast
		}

		lbl.Row = len(rows)
		for r, last := range rows {
			if lbl.X-last >= p.opts.LabelWidth {
				lbl.Row = r
				break
			}
		}
		if lbl.Row == len(rows) {
			rows = append(rows, lbl.X)
		} else {
			rows[lbl.Row] = lbl.X
		}
		pl.Peaks = append(pl.Peaks, lbl)
	}
	return pl
}

func (p *Projector) axis(s Scale, plot float64) Axis {
	a := Axis{
		MaxLabel: fmt.Sprintf("%.1f", s.Max),
		MinLabel: fmt.Sprintf("%.1f", s.Min),
		ZeroY:    s.Y(0, plot),
	}
	for _, v := range s.Grid(int(plot / minGridGap)) {
		if y := s.Y(v, plot); y >= 0 && y <= plot {
			a.GridY = append(a.GridY, y)
		}
	}
	return a
}
