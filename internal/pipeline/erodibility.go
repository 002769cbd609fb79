package pipeline

import (
	"math"

	"github.com/annel0/terragen/internal/elevation"
	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/annel0/terragen/internal/vec"
)

// maxErodibilityGain - верхняя граница множителя податливости для частиц
const maxErodibilityGain = 4.0

// erodibilityGrid растеризует податливость точек сетки в size×size и
// нормирует её на среднее, так что средний множитель равен 1.
// Неразрешимые ячейки получают среднее.
func erodibilityGrid(m *terrain.Mesh, size int) ([]float32, error) {
	values := make([]float64, m.Len())
	for i, p := range m.Params {
		values[i] = p.Erodibility
	}
	field, err := elevation.NewMeshField(m.Mesh, values)
	if err != nil {
		return nil, err
	}

	grid := make([]float64, size*size)
	err = raster.ParallelRows(size, func(y0, y1 int) error {
		for iy := y0; iy < y1; iy++ {
			y := m.Max.Y * (float64(iy) / float64(size))
			for ix := 0; ix < size; ix++ {
				x := m.Max.X * (float64(ix) / float64(size))
				v, ok := field.Elevation(vec.Vec2Float{X: x, Y: y})
				if !ok {
					v = math.NaN()
				}
				grid[iy*size+ix] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sum, count := 0.0, 0
	for _, v := range grid {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	out := make([]float32, len(grid))
	if count == 0 || sum <= 0 {
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}

	mean := sum / float64(count)
	for i, v := range grid {
		if math.IsNaN(v) {
			v = mean
		}
		out[i] = float32(math.Min(math.Max(v/mean, 0), maxErodibilityGain))
	}
	return out, nil
}
