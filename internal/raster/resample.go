package raster

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Lanczos3 - ядро Ланцоша с окном 3
var Lanczos3 = &draw.Kernel{Support: 3, At: lanczos3}

// CatmullRom - бикубическое ядро Катмулла-Рома
var CatmullRom = draw.CatmullRom

func lanczos3(t float64) float64 {
	t = math.Abs(t)
	if t < 1e-12 {
		return 1
	}
	if t >= 3 {
		return 0
	}
	pt := math.Pi * t
	return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
}

// KernelByName возвращает ядро по имени из конфигурации
func KernelByName(name string) (*draw.Kernel, error) {
	switch name {
	case "lanczos3", "":
		return Lanczos3, nil
	case "catmullrom":
		return CatmullRom, nil
	default:
		return nil, fmt.Errorf("raster: неизвестный фильтр %q", name)
	}
}

// Resize передискретизирует растр высот до width×height с 16-битной точностью
func Resize(hm *HeightMap, width, height int, kernel *draw.Kernel) (*HeightMap, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: целевой размер %d×%d", ErrInvalidRasterDimensions, width, height)
	}
	if kernel == nil {
		kernel = Lanczos3
	}

	src := toGray16(hm)
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := fromGray16(dst)
	// Звон ядра может вывести значения за шкалу
	for i, v := range out.Pix {
		if float64(v) > FixedPointScale {
			out.Pix[i] = uint16(FixedPointScale)
		}
	}
	return out, nil
}

func toGray16(hm *HeightMap) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, hm.Width, hm.Height))
	for i, v := range hm.Pix {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img
}

func fromGray16(img *image.Gray16) *HeightMap {
	b := img.Bounds()
	hm := NewHeightMap(b.Dx(), b.Dy())
	for y := 0; y < hm.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < hm.Width; x++ {
			hm.Pix[y*hm.Width+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
		}
	}
	return hm
}
