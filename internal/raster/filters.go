package raster

import (
	"math"
	"math/rand"
)

// AddGaussianNoise добавляет к каждой ячейке гауссов шум N(mean, stddev)
// в единицах фиксированной точки, с насыщением. Детерминирован по seed.
func AddGaussianNoise(hm *HeightMap, mean, stddev float64, seed int64) error {
	if err := hm.Validate(); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	for i, v := range hm.Pix {
		n := float64(v) + mean + stddev*rng.NormFloat64()
		hm.Pix[i] = uint16(math.Max(0, math.Min(FixedPointScale, n)))
	}
	return nil
}

// StretchContrast линейно растягивает диапазон [lower, upper] на [0, 255]:
// значения не выше lower дают 0, не ниже upper - 255.
func StretchContrast(gm *GrayMap, lower, upper uint8) error {
	if err := gm.Validate(); err != nil {
		return err
	}
	if upper <= lower {
		return nil
	}

	span := int(upper) - int(lower)
	for i, p := range gm.Pix {
		switch {
		case p <= lower:
			gm.Pix[i] = 0
		case p >= upper:
			gm.Pix[i] = 255
		default:
			gm.Pix[i] = uint8((int(p) - int(lower)) * 255 / span)
		}
	}
	return nil
}

// DischargeByte переводит интенсивность стока из [-1, 1] в байт: (v+1)×0.5×255
func DischargeByte(v float64) uint8 {
	b := (v + 1.0) * 0.5 * 255.0
	if math.IsNaN(b) || b <= 0 {
		return 0
	}
	if b >= 255 {
		return 255
	}
	return uint8(b)
}
