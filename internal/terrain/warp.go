package terrain

import (
	"math"

	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/vec"
)

// Константы деформации области
const (
	faultScale     = 100.0
	maxFaultRadius = 35.0

	reefScaleScale = 800.0
	reefMinScale   = 7.5
	reefMaxScale   = 20.0
	maxReefRadius  = 5.0
	reefExponent   = 3.5
)

// Warper смещает точки сначала разломом, затем рифом
type Warper struct {
	src noise.Source
	rng vec.Vec2Float // размах границ карты, развязывает каналы направления
}

// NewWarper создаёт деформацию для карты с указанным размахом границ
func NewWarper(src noise.Source, boundRange vec.Vec2Float) *Warper {
	return &Warper{src: src, rng: boundRange}
}

// Fault возвращает смещение разлома в точке
func (w *Warper) Fault(p vec.Vec2Float) vec.Vec2Float {
	modulus := noise.Ridged(w.src, p.X/faultScale, p.Y/faultScale, 3, 0.5, 2.0) * 2.0 * maxFaultRadius
	dir := w.direction(p, faultScale).Mul(2.0)
	return dir.Mul(modulus)
}

// Reef возвращает смещение рифа; его масштаб сам модулирован шумом
func (w *Warper) Reef(p vec.Vec2Float) vec.Vec2Float {
	scale := noise.Ridged(w.src, p.X/reefScaleScale, p.Y/reefScaleScale, 2, 0.5, 2.0)*
		2.0*(reefMaxScale-reefMinScale) + reefMinScale
	root := noise.Ridged(w.src, p.X/scale, p.Y/scale, 3, 0.5, 2.0) * 2.0
	modulus := math.Min(math.Pow(root, reefExponent), 1.0) * maxReefRadius
	return w.direction(p, scale).Mul(modulus)
}

// Apply применяет разлом, затем риф к уже смещённой точке
func (w *Warper) Apply(p vec.Vec2Float) vec.Vec2Float {
	faulted := p.Add(w.Fault(p))
	return faulted.Add(w.Reef(faulted))
}

func (w *Warper) direction(p vec.Vec2Float, scale float64) vec.Vec2Float {
	return vec.Vec2Float{
		X: noise.Octaved(w.src, (p.X+w.rng.X)/scale, (p.Y+w.rng.Y)/scale, 4, 0.6, 2.2),
		Y: noise.Octaved(w.src, (p.X-w.rng.X)/scale, (p.Y-w.rng.Y)/scale, 4, 0.6, 2.2),
	}
}
