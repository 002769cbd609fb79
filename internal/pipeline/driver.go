package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/elevation"
	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/metrics"
	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProgressFunc получает ход стадии: уровень пирамиды, выполнено и всего циклов
type ProgressFunc func(stage string, level, done, total int)

// MemoryProbe возвращает объём доступной памяти в байтах
type MemoryProbe func(ctx context.Context) (uint64, error)

// bytesPerCell - оценка памяти на ячейку последнего уровня: мир эрозии
// (7 × float32), растры высот до и после (2 × uint16) и карта стока
const bytesPerCell = 7*4 + 2*2 + 1

// Driver - конвейер генерации: синтез сетки, решение высот, растеризация
// и пирамида эрозии
type Driver struct {
	opts     Options
	synth    *terrain.Synthesizer
	solver   elevation.Solver
	metrics  *metrics.Pipeline
	progress ProgressFunc
	memory   MemoryProbe
	tracer   trace.Tracer
	log      *logging.Logger
}

// Option настраивает Driver
type Option func(*Driver)

// WithBuilder задаёт построитель сетки
func WithBuilder(b mesh.Builder) Option {
	return func(d *Driver) { d.synth = terrain.NewSynthesizer(b) }
}

// WithSolver задаёт решатель высот
func WithSolver(s elevation.Solver) Option {
	return func(d *Driver) { d.solver = s }
}

// WithMetrics подключает метрики Prometheus
func WithMetrics(m *metrics.Pipeline) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithProgress подключает уведомления о ходе эрозии
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) { d.progress = fn }
}

// WithMemoryProbe заменяет проверку памяти; nil отключает проверку
func WithMemoryProbe(p MemoryProbe) Option {
	return func(d *Driver) { d.memory = p }
}

// NewDriver создаёт конвейер. По умолчанию: сетка Делоне, решатель
// stream-power и проверка памяти через gopsutil.
func NewDriver(opts Options, options ...Option) (*Driver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		opts:   opts,
		synth:  terrain.NewSynthesizer(nil),
		solver: elevation.NewStreamPowerSolver(),
		memory: hostMemory,
		tracer: otel.Tracer("github.com/annel0/terragen/internal/pipeline"),
		log:    logging.GetPipelineLogger(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Options возвращает параметры пирамиды
func (d *Driver) Options() Options {
	return d.opts
}

// Run строит исходный растр и сразу эродирует его в заданном режиме
func (d *Driver) Run(ctx context.Context, cfg config.Generation, mode Mode) (*Session, error) {
	cfg.Mode = mode.String()
	s, err := d.Generate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return d.Erode(ctx, s)
}

// Generate синтезирует сетку, решает высоты и растеризует исходный уровень
func (d *Driver) Generate(ctx context.Context, cfg config.Generation) (*Session, error) {
	ctx, span := d.tracer.Start(ctx, "pipeline.Generate",
		trace.WithAttributes(attribute.Int64("terragen.seed", int64(cfg.Seed))))
	defer span.End()

	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, d.fail(span, &StageError{Stage: StageSynthesize, Err: err})
	}

	var m *terrain.Mesh
	err = d.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		var err error
		m, err = d.synth.Synthesize(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, d.fail(span, err)
	}
	d.metrics.SetOutlets(countOutlets(m.Params))

	var field elevation.Field
	err = d.stage(ctx, StageSolve, func(ctx context.Context) error {
		var err error
		field, err = d.solver.Solve(ctx, m.Mesh, m.Params)
		return err
	})
	if err != nil {
		return nil, d.fail(span, err)
	}

	size := d.opts.BaseSize()
	var (
		hm   *raster.HeightMap
		rgb  []uint8
		erod []float32
	)
	err = d.stage(ctx, StageRasterize, func(ctx context.Context) error {
		var (
			stats raster.RasterStats
			err   error
		)
		hm, rgb, stats, err = raster.Rasterize(ctx, field, m.Max, size)
		if err != nil {
			return err
		}
		if stats.Unresolved > 0 {
			d.log.Debug("%v: пропущено %d из %d точек", ErrUnresolvedElevationSample, stats.Unresolved, stats.Samples)
		}
		if d.opts.ErodibilityMap {
			erod, err = erodibilityGrid(m, size)
		}
		return err
	})
	if err != nil {
		return nil, d.fail(span, err)
	}

	s := &Session{
		cfg:         cfg,
		mesh:        m,
		raw:         hm,
		erodibility: erod,
		outputs: Outputs{
			RunID:       uuid.New(),
			Seed:        cfg.Seed,
			Mode:        mode,
			BaseSize:    size,
			MaxAltitude: field.MaxElevation(),
			RawMap512:   hm.Pix,
			ColorMap512: rgb,
			Erodibility: erod,
		},
	}
	d.log.Info("🗺️ Исходный растр %d×%d готов (run=%s, сид %d, макс. высота %.2f)",
		size, size, s.outputs.RunID, cfg.Seed, s.outputs.MaxAltitude)
	return s, nil
}

// ErodePreview эродирует исходный растр erosion_cycles циклами и
// возвращает сессию с превью
func (d *Driver) ErodePreview(ctx context.Context, s *Session) (*Session, error) {
	ctx, span := d.tracer.Start(ctx, "pipeline.ErodePreview")
	defer span.End()

	if s == nil || s.raw == nil {
		return nil, d.fail(span, &StageError{Stage: StagePreview, Err: ErrMissingPrerequisiteRaster})
	}

	next := s.derive()
	err := d.stage(ctx, StagePreview, func(ctx context.Context) error {
		size := s.raw.Width
		world, err := d.newWorld(s, s.raw)
		if err != nil {
			return err
		}
		if err := d.erodeCycles(ctx, world, s.cfg.ErosionCycles, size); err != nil {
			return err
		}
		hm, err := world.HeightMap()
		if err != nil {
			return err
		}
		rgba, err := raster.ColorizeHeights(hm, s.outputs.MaxAltitude)
		if err != nil {
			return err
		}
		next.outputs.ErodedRaw512 = hm.Pix
		next.outputs.ErodedColor512 = rgba
		return nil
	})
	if err != nil {
		return nil, d.fail(span, err)
	}
	return next, nil
}

// Erode прогоняет пирамиду эрозии в режиме сессии и считывает последний уровень
func (d *Driver) Erode(ctx context.Context, s *Session) (*Session, error) {
	ctx, span := d.tracer.Start(ctx, "pipeline.Erode")
	defer span.End()

	if s == nil || s.raw == nil {
		return nil, d.fail(span, &StageError{Stage: StageErode, Err: ErrMissingPrerequisiteRaster})
	}
	mode, err := ParseMode(s.cfg.Mode)
	if err != nil {
		return nil, d.fail(span, &StageError{Stage: StageErode, Err: err})
	}
	span.SetAttributes(
		attribute.String("terragen.mode", mode.String()),
		attribute.Int64("terragen.cycles", int64(s.cfg.ErosionCycles)),
	)

	// Singular без циклов продолжает предыдущий растр последнего уровня как есть
	if terminal := d.opts.TerminalSize(); mode == Singular && s.cfg.ErosionCycles == 0 && s.hasTerminal(terminal) {
		next := s.derive()
		next.outputs.Mode = mode
		d.log.Info("🌊 Эрозия пропущена: режим %s, 0 циклов, растр %d×%d сохранен", mode, terminal, terminal)
		return next, nil
	}

	var world *erosion.World
	err = d.stage(ctx, StageErode, func(ctx context.Context) error {
		var err error
		world, err = d.erodePyramid(ctx, s, mode)
		return err
	})
	if err != nil {
		return nil, d.fail(span, err)
	}

	next := s.derive()
	err = d.stage(ctx, StageReadout, func(ctx context.Context) error {
		full, err := world.HeightMap()
		if err != nil {
			return err
		}
		discharge, err := world.DischargeMap()
		if err != nil {
			return err
		}
		if err := raster.StretchContrast(discharge, dischargeLower, dischargeUpper); err != nil {
			return err
		}

		next.full = full
		next.outputs.Mode = mode
		next.outputs.LevelSize = full.Width
		next.outputs.ErodedFull = full.Pix
		next.outputs.Discharge = discharge.Pix
		return nil
	})
	if err != nil {
		return nil, d.fail(span, err)
	}

	d.log.Info("🌊 Эрозия завершена: режим %s, уровень %d×%d, циклов %d",
		mode, next.outputs.LevelSize, next.outputs.LevelSize, s.cfg.ErosionCycles)
	return next, nil
}

// erodePyramid возвращает мир последнего уровня после эрозии
func (d *Driver) erodePyramid(ctx context.Context, s *Session, mode Mode) (*erosion.World, error) {
	cycles := s.cfg.ErosionCycles
	terminal := d.opts.TerminalSize()
	kernel := d.opts.kernel()

	// Без эрозии оба режима сводятся к одной передискретизации без шума
	if cycles == 0 {
		if err := d.checkMemory(ctx, terminal); err != nil {
			return nil, err
		}
		hm, err := raster.Resize(s.raw, terminal, terminal, kernel)
		if err != nil {
			return nil, err
		}
		return d.newWorld(s, hm)
	}

	if mode == Singular {
		if err := d.checkMemory(ctx, terminal); err != nil {
			return nil, err
		}
		hm := s.full
		if !s.hasTerminal(terminal) {
			var err error
			if hm, err = raster.Resize(s.raw, terminal, terminal, d.opts.singularKernel()); err != nil {
				return nil, err
			}
		} else {
			d.log.Debug("singular: продолжаем с предыдущего растра %d×%d", terminal, terminal)
		}
		world, err := d.newWorld(s, hm)
		if err != nil {
			return nil, err
		}
		return world, d.erodeCycles(ctx, world, cycles, terminal)
	}

	hm := s.raw
	var world *erosion.World
	for li, size := range d.opts.Levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if size == terminal {
			if err := d.checkMemory(ctx, terminal); err != nil {
				return nil, err
			}
		}
		if li > 0 {
			var err error
			if hm, err = raster.Resize(hm, size, size, kernel); err != nil {
				return nil, fmt.Errorf("уровень %d: %w", size, err)
			}
			if err := raster.AddGaussianNoise(hm, d.opts.NoiseMean, d.opts.NoiseStdDev, d.opts.NoiseSeed); err != nil {
				return nil, err
			}
		}

		var err error
		if world, err = d.newWorld(s, hm); err != nil {
			return nil, err
		}
		if err := d.erodeCycles(ctx, world, cycles, size); err != nil {
			return nil, err
		}
		if size != terminal {
			if hm, err = world.HeightMap(); err != nil {
				return nil, err
			}
			world = nil
		}
	}
	return world, nil
}

// newWorld строит мир эрозии уровня; сид зависит от сида генерации и стороны уровня
func (d *Driver) newWorld(s *Session, hm *raster.HeightMap) (*erosion.World, error) {
	seed := int64(s.cfg.Seed)<<20 ^ int64(hm.Width)
	world, err := erosion.New(hm.Pix, hm.Width, hm.Height, seed)
	if err != nil {
		return nil, err
	}
	if s.erodibility != nil && s.raw != nil {
		if err := world.SetErodibility(s.erodibility, s.raw.Width, s.raw.Height); err != nil {
			return nil, err
		}
	}
	return world, nil
}

// erodeCycles выполняет cycles циклов по size частиц
func (d *Driver) erodeCycles(ctx context.Context, world *erosion.World, cycles uint64, size int) error {
	total := int(cycles)
	d.report(StageErode, size, 0, total)
	for c := 0; c < total; c++ {
		if err := world.Erode(ctx, size, d.opts.ErosionScale); err != nil {
			return err
		}
		d.metrics.AddParticles(strconv.Itoa(size), size)
		d.report(StageErode, size, c+1, total)
	}
	return nil
}

func (d *Driver) report(stage string, size, done, total int) {
	logging.LogStageProgress(d.log, stage, size, done, total)
	if d.progress != nil {
		d.progress(stage, size, done, total)
	}
}

// checkMemory сверяет оценку памяти уровня с доступной; при нехватке
// предупреждает или, в строгом режиме, возвращает ErrInsufficientMemory
func (d *Driver) checkMemory(ctx context.Context, size int) error {
	if d.memory == nil {
		return nil
	}
	need := uint64(size) * uint64(size) * bytesPerCell
	avail, err := d.memory(ctx)
	if err != nil {
		d.log.Warn("Не удалось определить доступную память: %v", err)
		return nil
	}
	if avail >= need {
		return nil
	}

	const mb = 1 << 20
	if d.opts.StrictMemory {
		return fmt.Errorf("%w: %d×%d требует ~%d МБ, доступно %d МБ",
			ErrInsufficientMemory, size, size, need/mb, avail/mb)
	}
	d.log.Warn("⚠️ Уровень %d×%d требует ~%d МБ, доступно %d МБ", size, size, need/mb, avail/mb)
	return nil
}

// stage выполняет стадию в отдельном span с замером времени
func (d *Driver) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}

	ctx, span := d.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	d.metrics.ObserveStage(name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.metrics.IncError(name)
		return &StageError{Stage: name, Err: err}
	}
	d.log.Debug("стадия %s: %v", name, elapsed)
	return nil
}

func (d *Driver) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.log.Error("Ошибка конвейера: %v", err)
	return err
}

func hostMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func countOutlets(params []terrain.SiteParameters) int {
	n := 0
	for _, p := range params {
		if p.IsOutlet {
			n++
		}
	}
	return n
}
