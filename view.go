package main

import (
	"fmt"
	"io"
	"strings"

	"vecScope/graph"
	"vecScope/render"
	"vecScope/telemetry"
)

// One terminal cell stands for cellW x cellH canvas units so the
// projector's pixel margins keep their proportions.
const (
	cellW      = 4.0
	cellH      = 10.0
	headerRows = 2
	labelRows  = 2
)

var channelGlyph = map[telemetry.Channel]byte{
	telemetry.Magnitude: '*',
	telemetry.X:         'x',
	telemetry.Y:         'y',
	telemetry.Z:         'z',
}

var channelColor = map[telemetry.Channel]string{
	telemetry.Magnitude: ColorGreen,
	telemetry.X:         ColorRed,
	telemetry.Y:         ColorYellow,
	telemetry.Z:         ColorBlue,
}

type cell struct {
	ch    byte
	color string
}

type termView struct {
	out    io.Writer
	size   func() (int, int)
	margin float64
}

func newTermView(out io.Writer) *termView {
	return &termView{out: out, size: termSize, margin: graph.DefaultOptions().LabelMargin}
}

func (v *termView) begin() {
	fmt.Fprint(v.out, "\033[?25l\033[2J")
	restoreTerm = v.end
}

func (v *termView) end() {
	fmt.Fprint(v.out, "\033[?25h\n")
}

func (v *termView) dims() (cols, rows int) {
	cols, h := v.size()
	rows = h - headerRows - labelRows - 1
	if rows < 4 {
		rows = 4
	}
	if cols < 20 {
		cols = 20
	}
	return cols, rows
}

func (v *termView) Canvas() graph.Canvas {
	cols, rows := v.dims()
	return graph.Canvas{Width: float64(cols) * cellW, Height: float64(rows)*cellH + v.margin}
}

func (v *termView) Present(f render.Frame) error {
	_, err := io.WriteString(v.out, "\033[H"+v.draw(f))
	return err
}

func (v *termView) draw(f render.Frame) string {
	cols, rows := v.dims()
	cells := make([][]cell, rows+labelRows)
	for i := range cells {
		cells[i] = make([]cell, cols)
	}
	put := func(r, c int, ch byte, color string, over bool) {
		if r < 0 || r >= len(cells) || c < 0 || c >= cols {
			return
		}
		if over || cells[r][c].ch == 0 {
			cells[r][c] = cell{ch, color}
		}
	}
	col := func(x float64) int { return clamp(int(x/cellW), 0, cols-1) }
	row := func(y float64) int { return clamp(int(y/cellH), 0, rows-1) }

	for i, pl := range f.Payloads {
		if i == 0 {
			for _, y := range pl.Axis.GridY {
				for c := 0; c < cols; c++ {
					put(row(y), c, '.', ColorGray, false)
				}
			}
			for c := 0; c < cols; c++ {
				put(row(pl.Axis.ZeroY), c, '-', ColorGray, true)
			}
		}

		glyph, color := channelGlyph[pl.Channel], channelColor[pl.Channel]
		for j, p := range pl.Points {
			if j == 0 {
				put(row(p.Y), col(p.X), glyph, color, true)
				continue
			}
			prev := pl.Points[j-1]
			c0, c1 := col(prev.X), col(p.X)
			for c := c0; c <= c1; c++ {
				y := p.Y
				if c1 > c0 {
					y = prev.Y + (p.Y-prev.Y)*float64(c-c0)/float64(c1-c0)
				}
				put(row(y), c, glyph, color, true)
			}
		}

		for _, pk := range pl.Peaks {
			c := col(pk.X)
			for r := row(pk.Y) + 1; r < rows; r++ {
				put(r, c, ':', ColorYellow, false)
			}
			if pk.Row >= labelRows {
				continue
			}
			start := c - len(pk.Text)/2
			switch pk.Anchor {
			case graph.AnchorWest:
				start = c
			case graph.AnchorEast:
				start = c - len(pk.Text) + 1
			}
			for k := 0; k < len(pk.Text); k++ {
				put(rows+pk.Row, start+k, pk.Text[k], ColorYellow, true)
			}
		}
	}

	if len(f.Payloads) > 0 {
		writeLabel(cells[0], f.Payloads[0].Axis.MaxLabel)
		writeLabel(cells[rows-1], f.Payloads[0].Axis.MinLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s  %sbuffered %d  dropped %d%s\033[K\n",
		stateColor(f.Status.State), f.Status, ColorReset, ColorGray, f.Buffered, f.Dropped, ColorReset)
	fmt.Fprintf(&b, "%s%s%s\033[K\n", ColorBold, f.Readout, ColorReset)
	for _, line := range cells {
		cur := ""
		for _, c := range line {
			if c.color != cur {
				if cur != "" {
					b.WriteString(ColorReset)
				}
				b.WriteString(c.color)
				cur = c.color
			}
			if c.ch == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(c.ch)
			}
		}
		if cur != "" {
			b.WriteString(ColorReset)
		}
		b.WriteString("\033[K\n")
	}
	return b.String()
}

func writeLabel(line []cell, text string) {
	for i := 0; i < len(text) && i < len(line); i++ {
		line[i] = cell{text[i], ColorGray}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
