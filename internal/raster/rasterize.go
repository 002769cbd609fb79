package raster

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/annel0/terragen/internal/elevation"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/vec"
)

// RasterStats - статистика растеризации
type RasterStats struct {
	Samples    int
	Unresolved int
	// Flat - максимальная высота поля не положительна, все высоты растра нулевые
	Flat bool
}

// Rasterize сэмплирует поле высот на регулярной сетке size×size над [0, max.X]×[0, max.Y].
// Неразрешимые точки пропускаются и остаются нулевыми. Возвращает растр высот
// в фиксированной точке и RGB-превью по шкале высот.
func Rasterize(ctx context.Context, field elevation.Field, max vec.Vec2Float, size int) (*HeightMap, []uint8, RasterStats, error) {
	if size <= 0 {
		return nil, nil, RasterStats{}, fmt.Errorf("%w: размер %d", ErrInvalidRasterDimensions, size)
	}

	hm := NewHeightMap(size, size)
	rgb := make([]uint8, size*size*3)
	maxElevation := field.MaxElevation()

	var unresolved atomic.Int64
	err := parallelRows(size, func(y0, y1 int) error {
		for iy := y0; iy < y1; iy++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			y := max.Y * (float64(iy) / float64(size))
			for ix := 0; ix < size; ix++ {
				x := max.X * (float64(ix) / float64(size))
				altitude, ok := field.Elevation(vec.Vec2Float{X: x, Y: y})
				if !ok {
					unresolved.Add(1)
					continue
				}

				i := iy*size + ix
				if maxElevation > 0 {
					hm.Pix[i] = PackHeight(altitude / maxElevation)
				}
				c := ColorAt(AltitudeColormap, altitude)
				rgb[3*i] = c[0]
				rgb[3*i+1] = c[1]
				rgb[3*i+2] = c[2]
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, RasterStats{}, err
	}

	stats := RasterStats{Samples: size * size, Unresolved: int(unresolved.Load())}
	if maxElevation <= 0 && stats.Unresolved < stats.Samples {
		stats.Flat = true
		logging.GetComponentLogger("raster").Warn("⚠️ Максимальная высота поля %.3f: растр высот %d×%d нулевой, цвет сохранен",
			maxElevation, size, size)
	}
	return hm, rgb, stats, nil
}
