package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Source - примитив когерентного шума. Значение лежит примерно в [-1, 1].
type Source interface {
	Noise2D(x, y float64) float64
}

// Perlin - однооктавный шум Перлина; октавы складываются в Octaved
type Perlin struct {
	p    *perlin.Perlin
	seed int64
}

// NewPerlin создаёт генератор шума Перлина с указанным сидом
func NewPerlin(seed int64) *Perlin {
	alpha := 2.0  // Затухание амплитуды (не используется при одной октаве)
	beta := 2.0   // Множитель частоты (не используется при одной октаве)
	n := int32(1) // Октавы собираем сами, см. Octaved
	return &Perlin{
		p:    perlin.NewPerlin(alpha, beta, n, seed),
		seed: seed,
	}
}

// Noise2D возвращает значение шума в точке (x, y)
func (p *Perlin) Noise2D(x, y float64) float64 {
	return p.p.Noise2D(x, y)
}

// Seed возвращает сид генератора
func (p *Perlin) Seed() int64 {
	return p.seed
}

// Octaved суммирует octaves октав шума с заданными persistence и lacunarity
// и нормирует результат на сумму амплитуд.
func Octaved(src Source, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	if octaves <= 0 {
		return 0
	}

	value := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxValue := 0.0

	for i := 0; i < octaves; i++ {
		value += src.Noise2D(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	return value / maxValue
}

// Ridged возвращает |Octaved| - «гребневой» вариант для модулей смещения
func Ridged(src Source, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	return math.Abs(Octaved(src, x, y, octaves, persistence, lacunarity))
}
