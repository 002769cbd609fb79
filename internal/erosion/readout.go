package erosion

import (
	"github.com/annel0/terragen/internal/raster"
)

// HeightMap упаковывает высоты мира в растр фиксированной точки (×raster.FixedPointScale)
func (w *World) HeightMap() (*raster.HeightMap, error) {
	hm := raster.NewHeightMap(w.width, w.height)
	err := raster.ParallelRows(w.height, func(y0, y1 int) error {
		for i := y0 * w.width; i < y1*w.width; i++ {
			hm.Pix[i] = raster.PackHeight(float64(w.heights[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hm, nil
}

// DischargeMap переводит сток каждой ячейки в байт (v+1)×0.5×255.
// Контраст не растягивается.
func (w *World) DischargeMap() (*raster.GrayMap, error) {
	gm := raster.NewGrayMap(w.width, w.height)
	err := raster.ParallelRows(w.height, func(y0, y1 int) error {
		for i := y0 * w.width; i < y1*w.width; i++ {
			gm.Pix[i] = raster.DischargeByte(w.dischargeAt(i))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gm, nil
}
