package terrain

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(seaPct float64) config.Generation {
	cfg := config.DefaultGeneration()
	cfg.BoundsMax = [2]float64{20, 20}
	cfg.LOD = 1.0
	cfg.SeaPct = seaPct
	return cfg
}

func TestSiteCount(t *testing.T) {
	cfg := config.DefaultGeneration()
	cfg.BoundsMin = [2]float64{0, 0}
	cfg.BoundsMax = [2]float64{100, 100}
	cfg.LOD = 4.0
	assert.Equal(t, 40000, SiteCount(cfg), "100×100×4 = 40000 внутренних точек")

	cfg.BoundsMax = [2]float64{10.5, 3}
	cfg.LOD = 0.5
	assert.Equal(t, 15, SiteCount(cfg), "Дробная часть отбрасывается: floor(15.75)")
}

func TestDetermineOutlets_Ring(t *testing.T) {
	// Кольцо 4-0-1-2-4: граничный кандидат 4 и три связанных внутренних,
	// кандидат 3 изолирован.
	g := mesh.NewGraph(5)
	g.AddEdge(4, 0, 1)
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 2, 1)
	g.AddEdge(2, 4, 1)

	candidates := []bool{true, true, true, true, true}
	outlets, err := DetermineOutlets(candidates, 4, g)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, false, true}, outlets,
		"Стоками становятся только кандидаты, связанные с границей")
	assert.Equal(t, 4, CountTrue(outlets))
}

func TestDetermineOutlets_StopsAtLand(t *testing.T) {
	// Цепочка 3-0-1-2, где 1 - суша: до 2 поиск не доходит
	g := mesh.NewGraph(4)
	g.AddEdge(3, 0, 1)
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 2, 1)

	outlets, err := DetermineOutlets([]bool{true, false, true, true}, 3, g)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, true}, outlets)
}

func TestDetermineOutlets_NoBoundaryCandidate(t *testing.T) {
	g := mesh.NewGraph(4)
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 2, 1)
	g.AddEdge(2, 3, 1)

	var outlets []bool
	var err error
	assert.NotPanics(t, func() {
		outlets, err = DetermineOutlets([]bool{true, true, true, false}, 3, g)
	}, "Отсутствие стоков не должно приводить к панике")
	assert.ErrorIs(t, err, ErrNoReachableOutlet)
	assert.Nil(t, outlets, "Пустая маска не должна возвращаться молча")
}

func TestSynthesizer_Deterministic(t *testing.T) {
	cfg := smallConfig(-2) // все точки - кандидаты в океан
	s := NewSynthesizer(nil)

	a, err := s.Synthesize(context.Background(), cfg)
	require.NoError(t, err)
	b, err := s.Synthesize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 400, a.Num)
	assert.Equal(t, a.Warped, b.Warped, "Смещённые точки должны совпадать побитно")
	assert.Equal(t, a.Params, b.Params, "Параметры точек должны совпадать побитно")
	assert.Len(t, a.Params, a.Len())

	for i, p := range a.Params {
		assert.Greater(t, p.Erodibility, 0.0, "Податливость точки %d должна быть положительной", i)
		assert.True(t, a.Warped[i].IsFinite())
	}
	assert.Equal(t, a.Len(), CountTrue(a.Candidates))
}

func TestSynthesizer_NoReachableOutlet(t *testing.T) {
	cfg := smallConfig(2) // ни одна точка не станет океаном
	_, err := NewSynthesizer(nil).Synthesize(context.Background(), cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoReachableOutlet)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr), "Ошибка должна быть типизированной")
	assert.Equal(t, cfg.Seed, genErr.Seed)
	assert.Equal(t, 0, genErr.Candidates)
}

func TestSynthesizer_InvalidConfig(t *testing.T) {
	cfg := smallConfig(0.05)
	cfg.LOD = 0
	_, err := NewSynthesizer(nil).Synthesize(context.Background(), cfg)
	assert.Error(t, err)
}

func TestErodibility_AlwaysPositive(t *testing.T) {
	src := noise.NewPerlin(5)
	for i := 0; i < 100; i++ {
		p := vec.Vec2Float{X: float64(i) * 1.7, Y: float64(i) * 0.9}
		assert.Greater(t, Erodibility(src, p, 50, 0), 0.0, "Даже при mountain_pct = 0")
		assert.Greater(t, Erodibility(src, p, 50, 25), 0.0)
	}
}

func TestWarper_Deterministic(t *testing.T) {
	w1 := NewWarper(noise.NewPerlin(9), vec.Vec2Float{X: 100, Y: 100})
	w2 := NewWarper(noise.NewPerlin(9), vec.Vec2Float{X: 100, Y: 100})

	moved := false
	for i := 0; i < 50; i++ {
		p := vec.Vec2Float{X: float64(i)*2.3 + 0.5, Y: float64(i)*1.1 + 0.25}
		a := w1.Apply(p)
		assert.Equal(t, a, w2.Apply(p))
		assert.LessOrEqual(t, w1.Reef(p).Length(), maxReefRadius*2, "Смещение рифа ограничено")
		if a != p {
			moved = true
		}
	}
	assert.True(t, moved, "Деформация должна смещать точки")
}
