package viz

import (
	"math"
	"strings"

	"github.com/san-kum/stagesim/internal/subsystem"
)

// Braille patterns are 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
//
// with the empty cell at U+2800.
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a Braille pixel grid. Pixel coordinates run over
// (Width*2) x (Height*4) with y growing downward.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) DrawCircle(cx, cy, r int) {
	if r <= 0 {
		c.Set(cx, cy)
		return
	}
	steps := max(8*r, 16)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		c.Set(cx+int(math.Round(float64(r)*math.Cos(a))), cy+int(math.Round(float64(r)*math.Sin(a))))
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Projector maps the x-y plane of world space onto canvas pixels, with the
// world origin at the canvas center and y up.
type Projector struct {
	W, H  int
	Scale float64 // pixels per world unit
}

// Fit returns a projector showing [-extent, extent] in both directions.
func Fit(c *Canvas, extent float64) Projector {
	px := min(c.Width*2, c.Height*4)
	if extent <= 0 {
		extent = 1
	}
	return Projector{W: c.Width * 2, H: c.Height * 4, Scale: float64(px-1) / (2 * extent)}
}

func (p Projector) Point(v subsystem.Vec3) (int, int) {
	x := float64(p.W)/2 + v[0]*p.Scale
	y := float64(p.H)/2 - v[1]*p.Scale
	return int(math.Round(x)), int(math.Round(y))
}

// DrawDecorations renders lines, circles, spheres and boxes. Text and
// cylinders are skipped; frames draw as a small cross.
func (c *Canvas) DrawDecorations(p Projector, geom []subsystem.Decoration) {
	for _, d := range geom {
		switch d.Kind {
		case subsystem.Line:
			x0, y0 := p.Point(d.From)
			x1, y1 := p.Point(d.To)
			c.DrawLine(x0, y0, x1, y1)
		case subsystem.Circle, subsystem.Ellipsoid:
			x, y := p.Point(d.Origin)
			c.DrawCircle(x, y, int(math.Round(d.Scale[0]*p.Scale)))
		case subsystem.Box:
			hx, hy := d.Scale[0]*p.Scale/2, d.Scale[1]*p.Scale/2
			x, y := p.Point(d.Origin)
			x0, y0 := x-int(hx), y-int(hy)
			x1, y1 := x+int(hx), y+int(hy)
			c.DrawLine(x0, y0, x1, y0)
			c.DrawLine(x1, y0, x1, y1)
			c.DrawLine(x1, y1, x0, y1)
			c.DrawLine(x0, y1, x0, y0)
		case subsystem.Frame:
			x, y := p.Point(d.Origin)
			c.DrawLine(x-2, y, x+2, y)
			c.DrawLine(x, y-2, x, y+2)
		}
	}
}

// Extent returns the largest |x| or |y| reached by geom, padded by the
// drawn radius of solids.
func Extent(geom []subsystem.Decoration) float64 {
	ext := 0.0
	grow := func(v subsystem.Vec3, pad float64) {
		ext = max(ext, math.Abs(v[0])+pad, math.Abs(v[1])+pad)
	}
	for _, d := range geom {
		switch d.Kind {
		case subsystem.Line:
			grow(d.From, 0)
			grow(d.To, 0)
		default:
			grow(d.Origin, d.Scale[0])
		}
	}
	return ext
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
