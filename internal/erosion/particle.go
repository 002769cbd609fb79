package erosion

import (
	"context"
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/vec"
)

// ctxCheckInterval - как часто (в частицах) проверяется отмена контекста
const ctxCheckInterval = 256

// Erode моделирует n частиц последовательно в порядке генератора мира;
// scale умножает объёмы эрозии и отложения. После пачки сток и импульс
// подтягиваются к накопленным трекам.
func (w *World) Erode(ctx context.Context, n int, scale float64) error {
	if n < 0 {
		return fmt.Errorf("erosion: отрицательное число частиц %d", n)
	}
	if scale < 0 || math.IsNaN(scale) {
		return fmt.Errorf("erosion: некорректный масштаб %v", scale)
	}

	for i := 0; i < n; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				w.blendTracks()
				return err
			}
		}
		w.descend(scale)
		w.particles++
	}

	w.blendTracks()
	w.log.Trace("эрозия %d×%d: %d частиц, всего %d", w.width, w.height, n, w.particles)
	return nil
}

// descend ведёт одну частицу от случайной стартовой точки вниз по склону
func (w *World) descend(scale float64) {
	p := w.params
	pos := vec.Vec2Float{
		X: w.rng.Float64() * float64(w.width-1),
		Y: w.rng.Float64() * float64(w.height-1),
	}
	dir := vec.Vec2Float{}
	speed := p.InitialSpeed
	volume := p.InitialVolume
	sediment := 0.0

	for step := 0; step < p.MaxSteps; step++ {
		cell := pos.ToVec2().Index(w.width)
		h, grad := w.sample(pos)

		dir = dir.Mul(p.Inertia).Sub(grad.Mul(1 - p.Inertia))
		dir = dir.Add(w.momentumPull(cell, dir, volume))
		dir = dir.Normalized()
		if dir.X == 0 && dir.Y == 0 {
			break
		}

		w.dischargeTrack[cell] += float32(volume)
		w.momentumXTrack[cell] += float32(dir.X * volume)
		w.momentumYTrack[cell] += float32(dir.Y * volume)

		next := pos.Add(dir)
		if !w.inBounds(next) {
			break
		}

		nh, _ := w.sample(next)
		dh := nh - h

		capacity := math.Max(-dh, p.MinSlope) * speed * volume * p.CapacityFactor
		if sediment > capacity || dh > 0 {
			amount := (sediment - capacity) * p.DepositSpeed
			if dh > 0 {
				amount = math.Min(dh, sediment)
			}
			sediment -= amount
			w.spread(pos, amount*scale)
		} else {
			amount := math.Min((capacity-sediment)*p.ErodeSpeed*w.erodibilityAt(cell), -dh)
			sediment += amount
			w.spread(pos, -amount*scale)
		}

		speed = math.Sqrt(math.Max(0, speed*speed-dh*p.Gravity))
		volume *= 1 - p.Evaporation
		if volume < p.MinVolume {
			break
		}
		pos = next
	}
}

// momentumPull добавляет к направлению частицы долю импульса потока в ячейке,
// пропорциональную их сонаправленности
func (w *World) momentumPull(cell int, dir vec.Vec2Float, volume float64) vec.Vec2Float {
	m := vec.Vec2Float{X: float64(w.momentumX[cell]), Y: float64(w.momentumY[cell])}
	if m.Length() == 0 || dir.Length() == 0 {
		return vec.Vec2Float{}
	}
	align := m.Normalized().Dot(dir.Normalized())
	k := w.params.MomentumTransfer * align / (volume + float64(w.discharge[cell]))
	return m.Mul(k)
}

// blendTracks подтягивает сток и импульс к трекам пачки и обнуляет треки
func (w *World) blendTracks() {
	lr := float32(w.params.LearningRate)
	for i := range w.discharge {
		w.discharge[i] = (1-lr)*w.discharge[i] + lr*w.dischargeTrack[i]
		w.momentumX[i] = (1-lr)*w.momentumX[i] + lr*w.momentumXTrack[i]
		w.momentumY[i] = (1-lr)*w.momentumY[i] + lr*w.momentumYTrack[i]
		w.dischargeTrack[i] = 0
		w.momentumXTrack[i] = 0
		w.momentumYTrack[i] = 0
	}
}
