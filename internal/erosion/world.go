package erosion

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/vec"
)

// ErrInvalidErodibility - карта податливости не подходит к миру
var ErrInvalidErodibility = errors.New("erosion: некорректная карта податливости")

// Params - параметры частиц. Высоты нормированы в [0, 1], шаг сетки - одна ячейка.
type Params struct {
	Inertia          float64 // доля старого направления при повороте
	MinSlope         float64 // нижняя граница уклона в формуле ёмкости
	CapacityFactor   float64
	ErodeSpeed       float64
	DepositSpeed     float64
	Evaporation      float64 // доля воды, теряемая за шаг
	Gravity          float64
	MomentumTransfer float64 // влияние накопленного импульса потока на частицу
	MaxSteps         int
	MinVolume        float64
	InitialSpeed     float64
	InitialVolume    float64
	LearningRate     float64 // скорость подтягивания стока к треку после пачки
}

// DefaultParams возвращает параметры по умолчанию
func DefaultParams() Params {
	return Params{
		Inertia:          0.05,
		MinSlope:         0.0005,
		CapacityFactor:   4.0,
		ErodeSpeed:       0.3,
		DepositSpeed:     0.3,
		Evaporation:      0.01,
		Gravity:          4.0,
		MomentumTransfer: 1.0,
		MaxSteps:         128,
		MinVolume:        0.01,
		InitialSpeed:     1.0,
		InitialVolume:    1.0,
		LearningRate:     0.1,
	}
}

// World - сетка высот и учёт стока/импульса воды для эрозии частицами.
// Не потокобезопасен: Erode выполняется последовательно ради воспроизводимости.
type World struct {
	width, height int
	params        Params

	heights []float32

	discharge      []float32
	dischargeTrack []float32
	momentumX      []float32
	momentumY      []float32
	momentumXTrack []float32
	momentumYTrack []float32

	erodibility []float32

	rng       *rand.Rand
	particles uint64
	log       *logging.Logger
}

// New строит мир из растра высот в фиксированной точке (масштаб raster.FixedPointScale)
func New(pix []uint16, width, height int, seed int64) (*World, error) {
	return NewWithParams(pix, width, height, seed, DefaultParams())
}

// NewWithParams - как New, но с явными параметрами частиц
func NewWithParams(pix []uint16, width, height int, seed int64, params Params) (*World, error) {
	if width < 2 || height < 2 || len(pix) != width*height {
		return nil, fmt.Errorf("%w: мир %d×%d, буфер %d", raster.ErrInvalidRasterDimensions, width, height, len(pix))
	}

	n := width * height
	w := &World{
		width:          width,
		height:         height,
		params:         params,
		heights:        make([]float32, n),
		discharge:      make([]float32, n),
		dischargeTrack: make([]float32, n),
		momentumX:      make([]float32, n),
		momentumY:      make([]float32, n),
		momentumXTrack: make([]float32, n),
		momentumYTrack: make([]float32, n),
		rng:            rand.New(rand.NewSource(seed)),
		log:            logging.GetErosionLogger(),
	}
	for i, v := range pix {
		w.heights[i] = clampHeight(float32(float64(v) / raster.FixedPointScale))
	}
	return w, nil
}

// Width возвращает ширину мира в ячейках
func (w *World) Width() int { return w.width }

// Height возвращает высоту мира в ячейках
func (w *World) Height() int { return w.height }

// Particles возвращает общее число смоделированных частиц
func (w *World) Particles() uint64 { return w.particles }

// SetErodibility прикрепляет карту податливости размера gw×gh; ячейки мира
// берут значение ближайшей ячейки карты. nil снимает карту.
func (w *World) SetErodibility(grid []float32, gw, gh int) error {
	if grid == nil {
		w.erodibility = nil
		return nil
	}
	if gw <= 0 || gh <= 0 || len(grid) != gw*gh {
		return fmt.Errorf("%w: %d×%d, буфер %d", ErrInvalidErodibility, gw, gh, len(grid))
	}

	k := make([]float32, w.width*w.height)
	for y := 0; y < w.height; y++ {
		gy := y * gh / w.height
		for x := 0; x < w.width; x++ {
			gx := x * gw / w.width
			v := grid[gy*gw+gx]
			if v < 0 || math.IsNaN(float64(v)) {
				return fmt.Errorf("%w: отрицательное значение в (%d, %d)", ErrInvalidErodibility, gx, gy)
			}
			k[y*w.width+x] = v
		}
	}
	w.erodibility = k
	return nil
}

// Heights возвращает копию нормированных высот
func (w *World) Heights() []float32 {
	out := make([]float32, len(w.heights))
	copy(out, w.heights)
	return out
}

// Discharge возвращает интенсивность стока в точке: erf(0.4 × сток) в [0, 1).
// Точка округляется до ячейки и прижимается к границам. Только чтение.
func (w *World) Discharge(pos vec.Vec2Float) float64 {
	c := pos.ToVec2()
	if c.InBounds(w.width, w.height) {
		return w.dischargeAt(c.Index(w.width))
	}
	if c.X < 0 {
		c.X = 0
	} else if c.X >= w.width {
		c.X = w.width - 1
	}
	if c.Y < 0 {
		c.Y = 0
	} else if c.Y >= w.height {
		c.Y = w.height - 1
	}
	return w.dischargeAt(c.Index(w.width))
}

func (w *World) dischargeAt(i int) float64 {
	return math.Erf(0.4 * float64(w.discharge[i]))
}

func (w *World) inBounds(p vec.Vec2Float) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < float64(w.width-1) && p.Y < float64(w.height-1)
}

// sample возвращает высоту и градиент в точке билинейной интерполяцией.
// Точка должна лежать внутри [0, w-1)×[0, h-1).
func (w *World) sample(p vec.Vec2Float) (float64, vec.Vec2Float) {
	cx, cy := int(p.X), int(p.Y)
	fx, fy := p.X-float64(cx), p.Y-float64(cy)

	i := cy*w.width + cx
	nw := float64(w.heights[i])
	ne := float64(w.heights[i+1])
	sw := float64(w.heights[i+w.width])
	se := float64(w.heights[i+w.width+1])

	grad := vec.Vec2Float{
		X: (ne-nw)*(1-fy) + (se-sw)*fy,
		Y: (sw-nw)*(1-fx) + (se-ne)*fx,
	}
	h := nw*(1-fx)*(1-fy) + ne*fx*(1-fy) + sw*(1-fx)*fy + se*fx*fy
	return h, grad
}

// spread распределяет delta по четырём ячейкам вокруг точки с билинейными весами
func (w *World) spread(p vec.Vec2Float, delta float64) {
	cx, cy := int(p.X), int(p.Y)
	fx, fy := p.X-float64(cx), p.Y-float64(cy)

	i := cy*w.width + cx
	w.addHeight(i, delta*(1-fx)*(1-fy))
	w.addHeight(i+1, delta*fx*(1-fy))
	w.addHeight(i+w.width, delta*(1-fx)*fy)
	w.addHeight(i+w.width+1, delta*fx*fy)
}

func (w *World) addHeight(i int, delta float64) {
	w.heights[i] = clampHeight(w.heights[i] + float32(delta))
}

func (w *World) erodibilityAt(i int) float64 {
	if w.erodibility == nil {
		return 1
	}
	return float64(w.erodibility[i])
}

// clampHeight прижимает высоту к [0, 1]; NaN обрабатывается sanitizeNaN
func clampHeight(h float32) float32 {
	if h != h {
		return sanitizeNaN(h)
	}
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}
