// ABOUTME: Braille dot canvas for terminal plotting
// ABOUTME: Each terminal cell holds a 2x4 dot grid mapped onto U+2800 patterns
package ui

import "strings"

// Braille dot positions (col, row) → bit offset:
//
//	(0,0)=0  (1,0)=3
//	(0,1)=1  (1,1)=4
//	(0,2)=2  (1,2)=5
//	(0,3)=6  (1,3)=7
var brailleBits = [2][4]uint{
	{0, 1, 2, 6},
	{3, 4, 5, 7},
}

const brailleBase = 0x2800

// Canvas is a grid of braille cells addressed in dot coordinates
type Canvas struct {
	cols, rows int
	cells      []uint8
}

// NewCanvas creates a canvas of cols x rows terminal cells
func NewCanvas(cols, rows int) *Canvas {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return &Canvas{cols: cols, rows: rows, cells: make([]uint8, cols*rows)}
}

// DotWidth returns the width in dots
func (c *Canvas) DotWidth() int { return c.cols * 2 }

// DotHeight returns the height in dots
func (c *Canvas) DotHeight() int { return c.rows * 4 }

// Set lights the dot at (x, y). Out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return
	}
	c.cells[(y/4)*c.cols+x/2] |= 1 << brailleBits[x%2][y%4]
}

// IsSet reports whether the dot at (x, y) is lit
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return false
	}
	return c.cells[(y/4)*c.cols+x/2]&(1<<brailleBits[x%2][y%4]) != 0
}

// Line draws a straight segment between two dots (Bresenham)
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Rows renders each cell row as a string
func (c *Canvas) Rows() []string {
	out := make([]string, c.rows)
	for r := 0; r < c.rows; r++ {
		var line strings.Builder
		for col := 0; col < c.cols; col++ {
			line.WriteRune(rune(brailleBase + int(c.cells[r*c.cols+col])))
		}
		out[r] = line.String()
	}
	return out
}

func (c *Canvas) String() string {
	return strings.Join(c.Rows(), "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
