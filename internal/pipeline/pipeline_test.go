package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/elevation"
	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/vec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ridgeField - гладкий аналитический рельеф вместо решателя
type ridgeField struct{}

func (ridgeField) Elevation(p vec.Vec2Float) (float64, bool) {
	return 10 + 6*math.Sin(p.X/3)*math.Cos(p.Y/4) + p.X*0.3, true
}

func (ridgeField) MaxElevation() float64 { return 22 }

type ridgeSolver struct{}

func (ridgeSolver) Solve(context.Context, *mesh.Mesh, []elevation.SiteParameters) (elevation.Field, error) {
	return ridgeField{}, nil
}

func testConfig(cycles uint64, mode string) config.Generation {
	cfg := config.DefaultGeneration()
	cfg.BoundsMax = [2]float64{20, 20}
	cfg.LOD = 1.0
	cfg.SeaPct = -2 // все точки - кандидаты в океан
	cfg.ErosionCycles = cycles
	cfg.Mode = mode
	return cfg
}

func testDriver(t *testing.T, mutate func(*Options), options ...Option) *Driver {
	t.Helper()
	opts := DefaultOptions()
	opts.Levels = []int{16, 32, 64}
	if mutate != nil {
		mutate(&opts)
	}
	options = append([]Option{WithSolver(ridgeSolver{}), WithMemoryProbe(nil)}, options...)
	d, err := NewDriver(opts, options...)
	require.NoError(t, err)
	return d
}

func TestGenerate_BaseRaster(t *testing.T) {
	d := testDriver(t, nil)
	s, err := d.Generate(context.Background(), testConfig(1, config.ModeIncremental))
	require.NoError(t, err)

	out := s.Outputs()
	assert.Equal(t, 16, out.BaseSize)
	assert.Len(t, out.RawMap512, 16*16)
	assert.Len(t, out.ColorMap512, 16*16*3)
	assert.Equal(t, 22.0, out.MaxAltitude)
	assert.False(t, out.HasFull())
	assert.NotNil(t, s.Mesh())
	assert.NotEqual(t, uuid.Nil, out.RunID, "У прогона должен быть идентификатор")
}

func TestGenerate_NoOutlet(t *testing.T) {
	d := testDriver(t, nil)
	cfg := testConfig(1, config.ModeIncremental)
	cfg.SeaPct = 2

	_, err := d.Generate(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoReachableOutlet)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageSynthesize, stageErr.Stage)
}

func TestErode_MissingRaster(t *testing.T) {
	d := testDriver(t, nil)

	_, err := d.Erode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingPrerequisiteRaster)

	_, err = d.ErodePreview(context.Background(), &Session{})
	assert.ErrorIs(t, err, ErrMissingPrerequisiteRaster)
}

func TestErode_ZeroCyclesModesMatch(t *testing.T) {
	d := testDriver(t, nil)
	ctx := context.Background()

	base, err := d.Generate(ctx, testConfig(0, config.ModeIncremental))
	require.NoError(t, err)

	inc, err := d.Erode(ctx, base)
	require.NoError(t, err)

	singCfg := base.Config()
	singCfg.Mode = config.ModeSingular
	sing, err := d.Erode(ctx, base.WithConfig(singCfg))
	require.NoError(t, err)

	a, b := inc.Outputs(), sing.Outputs()
	assert.Equal(t, 64, a.LevelSize)
	assert.Len(t, a.ErodedFull, 64*64)
	assert.Equal(t, a.ErodedFull, b.ErodedFull, "Без циклов оба режима должны совпадать")
	assert.Equal(t, a.Discharge, b.Discharge)
	assert.Equal(t, Incremental, a.Mode)
	assert.Equal(t, Singular, b.Mode)

	// Без частиц стока нет: после растяжения контраста всё нулевое
	for _, v := range a.Discharge {
		assert.Equal(t, uint8(0), v)
	}
	assert.Empty(t, base.Outputs().ErodedFull, "Исходная сессия не изменяется")
}

func TestErode_IncrementalDeterministic(t *testing.T) {
	var levels []int
	progress := func(stage string, level, done, total int) {
		if done == total {
			levels = append(levels, level)
		}
	}

	run := func(options ...Option) Outputs {
		d := testDriver(t, nil, options...)
		s, err := d.Run(context.Background(), testConfig(2, ""), Incremental)
		require.NoError(t, err)
		return s.Outputs()
	}

	a := run(WithProgress(progress))
	b := run()

	assert.Equal(t, []int{16, 32, 64}, levels, "Каждый уровень пирамиды эродируется")
	assert.Equal(t, a.ErodedFull, b.ErodedFull, "Один сид — один рельеф")
	assert.Equal(t, a.Discharge, b.Discharge)
	assert.Len(t, a.Discharge, 64*64)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestErode_SingularReusesPrevious(t *testing.T) {
	var levels []int
	d := testDriver(t, nil, WithProgress(func(stage string, level, done, total int) {
		if done > 0 {
			levels = append(levels, level)
		}
	}))
	ctx := context.Background()

	s, err := d.Generate(ctx, testConfig(1, config.ModeSingular))
	require.NoError(t, err)

	first, err := d.Erode(ctx, s)
	require.NoError(t, err)
	second, err := d.Erode(ctx, first)
	require.NoError(t, err)

	assert.Equal(t, []int{64, 64}, levels, "Singular эродирует только последний уровень")
	assert.NotEqual(t, first.Outputs().ErodedFull, second.Outputs().ErodedFull,
		"Повторный вызов продолжает эрозию предыдущего растра")
}

func TestErode_SingularZeroCyclesKeepsPrevious(t *testing.T) {
	d := testDriver(t, nil)
	ctx := context.Background()

	s, err := d.Generate(ctx, testConfig(2, config.ModeSingular))
	require.NoError(t, err)
	first, err := d.Erode(ctx, s)
	require.NoError(t, err)

	cfg := first.Config()
	cfg.ErosionCycles = 0
	second, err := d.Erode(ctx, first.WithConfig(cfg))
	require.NoError(t, err)

	a, b := first.Outputs(), second.Outputs()
	assert.Equal(t, a.ErodedFull, b.ErodedFull, "Singular без циклов не должен терять предыдущую эрозию")
	assert.Equal(t, a.Discharge, b.Discharge)
	assert.Equal(t, Singular, b.Mode)

	// Из исходного растра 0 циклов по-прежнему дают простую передискретизацию
	fresh, err := d.Erode(ctx, s.WithConfig(cfg))
	require.NoError(t, err)
	assert.NotEqual(t, a.ErodedFull, fresh.Outputs().ErodedFull)
}

func TestErode_SingularBootstrapFilter(t *testing.T) {
	ctx := context.Background()
	run := func(filter string) Outputs {
		d := testDriver(t, func(o *Options) { o.SingularFilter = filter })
		s, err := d.Run(ctx, testConfig(1, ""), Singular)
		require.NoError(t, err)
		return s.Outputs()
	}

	catmull := run(config.FilterCatmullRom)
	lanczos := run(config.FilterLanczos3)
	assert.NotEqual(t, catmull.ErodedFull, lanczos.ErodedFull,
		"Первичная передискретизация Singular использует свой фильтр")

	// При нуле циклов фильтр Singular не участвует
	zero := func(filter string) Outputs {
		d := testDriver(t, func(o *Options) { o.SingularFilter = filter })
		s, err := d.Run(ctx, testConfig(0, ""), Singular)
		require.NoError(t, err)
		return s.Outputs()
	}
	assert.Equal(t, zero(config.FilterCatmullRom).ErodedFull, zero(config.FilterLanczos3).ErodedFull)
}

func TestErode_RestoredMatchesInMemory(t *testing.T) {
	d := testDriver(t, nil)
	ctx := context.Background()

	s, err := d.Run(ctx, testConfig(1, ""), Singular)
	require.NoError(t, err)
	require.NotNil(t, s.Outputs().Erodibility, "Карта эродируемости входит в результаты")

	restored, err := Restore(s.Config(), s.Outputs())
	require.NoError(t, err)

	inMemory, err := d.Erode(ctx, s)
	require.NoError(t, err)
	resumed, err := d.Erode(ctx, restored)
	require.NoError(t, err)

	assert.Equal(t, inMemory.Outputs().ErodedFull, resumed.Outputs().ErodedFull,
		"Продолжение после восстановления должно совпадать с продолжением в памяти")
	assert.Equal(t, inMemory.Outputs().Discharge, resumed.Outputs().Discharge)
}

func TestErodePreview(t *testing.T) {
	d := testDriver(t, nil)
	s, err := d.Generate(context.Background(), testConfig(3, config.ModeIncremental))
	require.NoError(t, err)

	p, err := d.ErodePreview(context.Background(), s)
	require.NoError(t, err)

	out := p.Outputs()
	assert.Len(t, out.ErodedRaw512, 16*16)
	assert.Len(t, out.ErodedColor512, 16*16*4)
	assert.Equal(t, s.Outputs().RawMap512, out.RawMap512, "Исходный растр не меняется")
}

func TestErode_MemoryGuard(t *testing.T) {
	tiny := WithMemoryProbe(func(context.Context) (uint64, error) { return 1, nil })
	ctx := context.Background()

	strict := testDriver(t, func(o *Options) { o.StrictMemory = true }, tiny)
	s, err := strict.Generate(ctx, testConfig(1, config.ModeIncremental))
	require.NoError(t, err)
	_, err = strict.Erode(ctx, s)
	assert.ErrorIs(t, err, ErrInsufficientMemory)

	lenient := testDriver(t, nil, tiny)
	_, err = lenient.Erode(ctx, s)
	assert.NoError(t, err, "Без строгого режима нехватка памяти только логируется")
}

func TestErode_Cancelled(t *testing.T) {
	d := testDriver(t, nil)
	s, err := d.Generate(context.Background(), testConfig(1, config.ModeIncremental))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Erode(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestore(t *testing.T) {
	d := testDriver(t, nil)
	ctx := context.Background()
	s, err := d.Run(ctx, testConfig(1, ""), Singular)
	require.NoError(t, err)

	restored, err := Restore(s.Config(), s.Outputs())
	require.NoError(t, err)
	assert.Nil(t, restored.Mesh())

	next, err := d.Erode(ctx, restored)
	require.NoError(t, err)
	assert.Len(t, next.Outputs().ErodedFull, 64*64)

	bad := s.Outputs()
	bad.ErodedFull = bad.ErodedFull[:10]
	_, err = Restore(s.Config(), bad)
	assert.ErrorIs(t, err, ErrInvalidRasterDimensions)

	bad = s.Outputs()
	bad.Erodibility = bad.Erodibility[:5]
	_, err = Restore(s.Config(), bad)
	assert.ErrorIs(t, err, ErrInvalidRasterDimensions)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("singular")
	require.NoError(t, err)
	assert.Equal(t, Singular, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Incremental, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestNewDriver_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Levels = []int{64, 32}
	_, err := NewDriver(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Filter = "box"
	_, err = NewDriver(opts)
	assert.Error(t, err)
}
