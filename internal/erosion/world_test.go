package erosion

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slope возвращает наклонную плоскость с небольшим шумом
func slope(size int, seed int64) []uint16 {
	rng := rand.New(rand.NewSource(seed))
	pix := make([]uint16, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			h := float64(x)/float64(size)*0.8 + rng.Float64()*0.05
			pix[y*size+x] = raster.PackHeight(h)
		}
	}
	return pix
}

func TestNew_InvalidDimensions(t *testing.T) {
	_, err := New(make([]uint16, 10), 4, 4, 1)
	assert.ErrorIs(t, err, raster.ErrInvalidRasterDimensions)

	_, err = New(make([]uint16, 1), 1, 1, 1)
	assert.ErrorIs(t, err, raster.ErrInvalidRasterDimensions)
}

func TestNew_Normalizes(t *testing.T) {
	w, err := New([]uint16{0, uint16(raster.FixedPointScale), 65535, 16383}, 2, 2, 1)
	require.NoError(t, err)

	h := w.Heights()
	assert.Equal(t, float32(0), h[0])
	assert.Equal(t, float32(1), h[1])
	assert.Equal(t, float32(1), h[2], "Значения выше шкалы насыщаются")
	assert.InDelta(t, 0.5, h[3], 1e-4)
}

func TestErode_Deterministic(t *testing.T) {
	pix := slope(48, 7)

	a, err := New(pix, 48, 48, 99)
	require.NoError(t, err)
	b, err := New(pix, 48, 48, 99)
	require.NoError(t, err)

	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, a.Erode(context.Background(), 48, 1.0))
		require.NoError(t, b.Erode(context.Background(), 48, 1.0))
	}

	assert.Equal(t, a.Heights(), b.Heights(), "Один сид должен давать одинаковый рельеф")
	assert.Equal(t, uint64(144), a.Particles())

	ga, err := a.DischargeMap()
	require.NoError(t, err)
	gb, err := b.DischargeMap()
	require.NoError(t, err)
	assert.Equal(t, ga.Pix, gb.Pix)
}

func TestErode_ChangesTerrain(t *testing.T) {
	pix := slope(48, 3)
	w, err := New(pix, 48, 48, 5)
	require.NoError(t, err)
	before := w.Heights()

	require.NoError(t, w.Erode(context.Background(), 500, 1.0))
	assert.NotEqual(t, before, w.Heights(), "Эрозия должна менять рельеф")

	// Нулевой масштаб не меняет высоты, но копит сток
	z, err := New(pix, 48, 48, 5)
	require.NoError(t, err)
	require.NoError(t, z.Erode(context.Background(), 500, 0))
	assert.Equal(t, before, z.Heights())

	total := 0.0
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			total += z.Discharge(vec.Vec2Float{X: float64(x), Y: float64(y)})
		}
	}
	assert.Greater(t, total, 0.0, "Частицы должны оставлять след стока")
}

func TestErode_HeightsStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	for trial := 0; trial < 20; trial++ {
		size := 8 + rng.Intn(40)
		pix := make([]uint16, size*size)
		for i := range pix {
			pix[i] = uint16(rng.Intn(65536))
		}

		w, err := New(pix, size, size, rng.Int63())
		require.NoError(t, err)
		require.NoError(t, w.Erode(context.Background(), size*4, 1+rng.Float64()*4))

		for i, h := range w.Heights() {
			require.False(t, math.IsNaN(float64(h)), "NaN в ячейке %d (попытка %d)", i, trial)
			require.GreaterOrEqual(t, h, float32(0), "Высота ниже нуля в ячейке %d", i)
			require.LessOrEqual(t, h, float32(1), "Высота выше единицы в ячейке %d", i)
		}
	}
}

func TestDischarge_PureAndBounded(t *testing.T) {
	w, err := New(slope(32, 1), 32, 32, 11)
	require.NoError(t, err)
	require.NoError(t, w.Erode(context.Background(), 300, 1.0))

	heights := w.Heights()
	for y := -2; y < 34; y++ {
		for x := -2; x < 34; x++ {
			p := vec.Vec2Float{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			d := w.Discharge(p)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.Less(t, d, 1.0)
			assert.Equal(t, d, w.Discharge(p), "Повторное чтение должно давать то же значение")
		}
	}
	assert.Equal(t, heights, w.Heights(), "Чтение стока не меняет высоты")
	assert.Equal(t, w.Discharge(vec.Vec2Float{X: 0.5, Y: 0.5}), w.Discharge(vec.Vec2Float{X: -7, Y: -3}),
		"Точка вне растра прижимается к ближайшей граничной ячейке")
	assert.Equal(t, w.Discharge(vec.Vec2Float{X: 31.5, Y: 10.5}), w.Discharge(vec.Vec2Float{X: 90, Y: 10.5}))

	gm, err := w.DischargeMap()
	require.NoError(t, err)
	for _, v := range gm.Pix {
		assert.GreaterOrEqual(t, v, uint8(127), "Неотрицательный сток даёт байт не ниже 127")
	}
}

func TestErode_ContextCancel(t *testing.T) {
	w, err := New(slope(32, 1), 32, 32, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Erode(ctx, 1000, 1.0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), w.Particles())

	assert.Error(t, w.Erode(context.Background(), -1, 1.0))
	assert.Error(t, w.Erode(context.Background(), 1, math.NaN()))
}

func TestSetErodibility(t *testing.T) {
	pix := slope(32, 4)

	hard, err := New(pix, 32, 32, 8)
	require.NoError(t, err)
	require.NoError(t, hard.SetErodibility(make([]float32, 4), 2, 2))
	require.NoError(t, hard.Erode(context.Background(), 200, 1.0))

	// При нулевой податливости частицы только переносят уже набранный осадок,
	// а набрать его неоткуда
	before, err := New(pix, 32, 32, 8)
	require.NoError(t, err)
	assert.Equal(t, before.Heights(), hard.Heights())

	assert.ErrorIs(t, hard.SetErodibility(make([]float32, 3), 2, 2), ErrInvalidErodibility)
	assert.ErrorIs(t, hard.SetErodibility([]float32{1, -1, 1, 1}, 2, 2), ErrInvalidErodibility)
	assert.NoError(t, hard.SetErodibility(nil, 0, 0))
}

func TestHeightMap_RoundTrip(t *testing.T) {
	pix := slope(16, 2)
	w, err := New(pix, 16, 16, 1)
	require.NoError(t, err)

	hm, err := w.HeightMap()
	require.NoError(t, err)
	for i := range pix {
		assert.InDelta(t, int(pix[i]), int(hm.Pix[i]), 1, "Без эрозии растр сохраняется (ячейка %d)", i)
	}
}
