package raster

import (
	"fmt"
	"math"
)

// FixedPointScale - масштаб упаковки нормированной высоты [0, 1] в uint16.
// Используется всеми растрами высот, включая исходный 512².
const FixedPointScale = 32767.0

// HeightMap - плотный растр высот в фиксированной точке, построчно, начало слева сверху
type HeightMap struct {
	Width, Height int
	Pix           []uint16
}

// NewHeightMap создаёт нулевой растр высот
func NewHeightMap(width, height int) *HeightMap {
	return &HeightMap{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// WrapHeightMap оборачивает готовый буфер, проверяя его длину
func WrapHeightMap(pix []uint16, width, height int) (*HeightMap, error) {
	hm := &HeightMap{Width: width, Height: height, Pix: pix}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm, nil
}

// Validate проверяет соответствие буфера размерам
func (hm *HeightMap) Validate() error {
	if hm == nil || hm.Width <= 0 || hm.Height <= 0 || len(hm.Pix) != hm.Width*hm.Height {
		return dimensionError(hm)
	}
	return nil
}

// At возвращает значение ячейки (x, y)
func (hm *HeightMap) At(x, y int) uint16 {
	return hm.Pix[y*hm.Width+x]
}

// Normalized возвращает высоту ячейки в [0, 1]
func (hm *HeightMap) Normalized(i int) float64 {
	return math.Min(float64(hm.Pix[i])/FixedPointScale, 1.0)
}

// Clone возвращает независимую копию растра
func (hm *HeightMap) Clone() *HeightMap {
	pix := make([]uint16, len(hm.Pix))
	copy(pix, hm.Pix)
	return &HeightMap{Width: hm.Width, Height: hm.Height, Pix: pix}
}

// GrayMap - плотный 8-битный растр (сток воды)
type GrayMap struct {
	Width, Height int
	Pix           []uint8
}

// NewGrayMap создаёт нулевой 8-битный растр
func NewGrayMap(width, height int) *GrayMap {
	return &GrayMap{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Validate проверяет соответствие буфера размерам
func (gm *GrayMap) Validate() error {
	if gm == nil || gm.Width <= 0 || gm.Height <= 0 || len(gm.Pix) != gm.Width*gm.Height {
		return fmt.Errorf("%w: 8-битный растр", ErrInvalidRasterDimensions)
	}
	return nil
}

// PackHeight упаковывает нормированную высоту в фиксированную точку с насыщением
func PackHeight(h float64) uint16 {
	if math.IsNaN(h) || h <= 0 {
		return 0
	}
	if h >= 1 {
		return uint16(FixedPointScale)
	}
	return uint16(h * FixedPointScale)
}

func dimensionError(hm *HeightMap) error {
	if hm == nil {
		return fmt.Errorf("%w: растр отсутствует", ErrInvalidRasterDimensions)
	}
	return fmt.Errorf("%w: %d×%d, буфер %d", ErrInvalidRasterDimensions, hm.Width, hm.Height, len(hm.Pix))
}
