package elevation

import (
	"math"

	"github.com/annel0/terragen/internal/vec"
)

// triangleGrid - равномерная сетка корзин с треугольниками для поиска точки
type triangleGrid struct {
	minX, minY   float64
	cellW, cellH float64
	cols, rows   int
	buckets      [][]int32
}

func newTriangleGrid(sites []vec.Vec2Float, triangles []int, min, max vec.Vec2Float) *triangleGrid {
	count := len(triangles) / 3
	side := int(math.Sqrt(float64(count)/2)) + 1

	g := &triangleGrid{
		minX:    min.X,
		minY:    min.Y,
		cols:    side,
		rows:    side,
		cellW:   (max.X - min.X) / float64(side),
		cellH:   (max.Y - min.Y) / float64(side),
		buckets: make([][]int32, side*side),
	}

	for t := 0; t < count; t++ {
		a, b, c := sites[triangles[3*t]], sites[triangles[3*t+1]], sites[triangles[3*t+2]]
		x0, y0 := g.cell(math.Min(a.X, math.Min(b.X, c.X)), math.Min(a.Y, math.Min(b.Y, c.Y)))
		x1, y1 := g.cell(math.Max(a.X, math.Max(b.X, c.X)), math.Max(a.Y, math.Max(b.Y, c.Y)))
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				g.buckets[y*g.cols+x] = append(g.buckets[y*g.cols+x], int32(t))
			}
		}
	}
	return g
}

func (g *triangleGrid) cell(x, y float64) (int, int) {
	cx := int((x - g.minX) / g.cellW)
	cy := int((y - g.minY) / g.cellH)
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	if cx >= g.cols {
		cx = g.cols - 1
	}
	if cy >= g.rows {
		cy = g.rows - 1
	}
	return cx, cy
}

// candidates возвращает треугольники корзины, содержащей p, или nil вне сетки
func (g *triangleGrid) candidates(p vec.Vec2Float) []int32 {
	x := (p.X - g.minX) / g.cellW
	y := (p.Y - g.minY) / g.cellH
	if x < 0 || y < 0 || x > float64(g.cols) || y > float64(g.rows) {
		return nil
	}
	cx, cy := g.cell(p.X, p.Y)
	return g.buckets[cy*g.cols+cx]
}

// barycentric возвращает барицентрические веса p в треугольнике abc
func barycentric(a, b, c, p vec.Vec2Float) (wa, wb, wc float64, ok bool) {
	det := b.Sub(a).Cross(c.Sub(a))
	if det == 0 {
		return 0, 0, 0, false
	}
	wb = p.Sub(a).Cross(c.Sub(a)) / det
	wc = b.Sub(a).Cross(p.Sub(a)) / det
	wa = 1 - wb - wc

	const eps = -1e-9
	if wa < eps || wb < eps || wc < eps {
		return 0, 0, 0, false
	}
	return wa, wb, wc, true
}
