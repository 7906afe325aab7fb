package mapview

import "github.com/charmbracelet/lipgloss"

// canvas is a cell grid with a 2x4 braille micro-pixel mask per cell plus
// per-cell colours and glyph overrides.
type canvas struct {
	w, h  int
	mask  [][]uint8
	fg    [][]lipgloss.Color
	bg    [][]lipgloss.Color
	glyph [][]rune
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h}
	c.mask = make([][]uint8, h)
	c.fg = make([][]lipgloss.Color, h)
	c.bg = make([][]lipgloss.Color, h)
	c.glyph = make([][]rune, h)
	for i := 0; i < h; i++ {
		c.mask[i] = make([]uint8, w)
		c.fg[i] = make([]lipgloss.Color, w)
		c.bg[i] = make([]lipgloss.Color, w)
		c.glyph[i] = make([]rune, w)
	}
	return c
}

var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// setPixel sets a micro-pixel at micro coords (2x4 per cell)
func (c *canvas) setPixel(mx, my int, col lipgloss.Color) {
	if mx < 0 || my < 0 {
		return
	}
	cx, rx := mx/2, mx%2
	cy, ry := my/4, my%4
	if cy >= c.h || cx >= c.w {
		return
	}
	c.mask[cy][cx] |= brailleBits[rx][ry]
	c.fg[cy][cx] = col
}

// drawLineMicro draws a line on the microgrid using Bresenham
func (c *canvas) drawLineMicro(x0, y0, x1, y1 int, col lipgloss.Color) {
	// skip segments entirely off-canvas on one side
	wm, hm := c.w*2, c.h*4
	if (x0 < 0 && x1 < 0) || (y0 < 0 && y1 < 0) || (x0 >= wm && x1 >= wm) || (y0 >= hm && y1 >= hm) {
		return
	}
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		c.setPixel(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *canvas) setGlyph(mx, my int, g rune, col lipgloss.Color) {
	cx, cy := mx/2, my/4
	if mx < 0 || my < 0 || cx >= c.w || cy >= c.h {
		return
	}
	c.glyph[cy][cx] = g
	c.fg[cy][cx] = col
}

func (c *canvas) setBackground(cx, cy int, col lipgloss.Color) {
	if cx < 0 || cy < 0 || cx >= c.w || cy >= c.h {
		return
	}
	c.bg[cy][cx] = col
}

func (c *canvas) cell(x, y int) rune {
	if g := c.glyph[y][x]; g != 0 {
		return g
	}
	if m := c.mask[y][x]; m != 0 {
		return rune(0x2800 + int(m))
	}
	return ' '
}

// toLines renders runs of equally coloured cells with one style each.
func (c *canvas) toLines() []string {
	out := make([]string, c.h)
	for y := 0; y < c.h; y++ {
		var line []byte
		x := 0
		for x < c.w {
			fg, bg := c.fg[y][x], c.bg[y][x]
			run := []rune{c.cell(x, y)}
			x++
			for x < c.w && c.fg[y][x] == fg && c.bg[y][x] == bg {
				run = append(run, c.cell(x, y))
				x++
			}
			st := lipgloss.NewStyle()
			if fg != "" {
				st = st.Foreground(fg)
			}
			if bg != "" {
				st = st.Background(bg)
			}
			line = append(line, st.Render(string(run))...)
		}
		out[y] = string(line)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
