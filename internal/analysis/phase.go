package analysis

import (
	"strings"
)

type Point struct{ X, Y float64 }

// PhasePortrait pairs columns x and y of each row.
func PhasePortrait(rows [][]float64, x, y int) []Point {
	pts := make([]Point, 0, len(rows))
	for _, r := range rows {
		if x < len(r) && y < len(r) {
			pts = append(pts, Point{r[x], r[y]})
		}
	}
	return pts
}

// PoincareSection records columns x and y, linearly interpolated, each time
// column cross passes threshold going upward.
func PoincareSection(rows [][]float64, cross int, threshold float64, x, y int) []Point {
	var pts []Point
	for i := 1; i < len(rows); i++ {
		prev, curr := rows[i-1], rows[i]
		if cross >= len(prev) || cross >= len(curr) || x >= len(curr) || y >= len(curr) {
			continue
		}
		a, b := prev[cross], curr[cross]
		if !(a < threshold && b >= threshold) {
			continue
		}
		frac := (threshold - a) / (b - a)
		pts = append(pts, Point{
			X: prev[x] + frac*(curr[x]-prev[x]),
			Y: prev[y] + frac*(curr[y]-prev[y]),
		})
	}
	return pts
}

// ToASCII plots points on a width x height grid with 10% padding, drawing
// the axes where they are in view.
func ToASCII(pts []Point, width, height int) string {
	if len(pts) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX, rangeY = maxX-minX, maxY-minY

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	colOf := func(x float64) int { return int((x - minX) / rangeX * float64(width-1)) }
	rowOf := func(y float64) int { return height - 1 - int((y-minY)/rangeY*float64(height-1)) }

	if minX <= 0 && maxX >= 0 {
		col := colOf(0)
		for row := range grid {
			grid[row][col] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := rowOf(0)
		for col := range grid[row] {
			if grid[row][col] == '│' {
				grid[row][col] = '┼'
			} else {
				grid[row][col] = '─'
			}
		}
	}
	for _, p := range pts {
		grid[rowOf(p.Y)][colOf(p.X)] = '•'
	}

	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteByte('\n')
	}
	return sb.String()
}
