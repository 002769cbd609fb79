package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/elevation"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/vec"
)

// SiteParameters - параметры точки, передаваемые решателю рельефа
type SiteParameters = elevation.SiteParameters

// Константы скалярных полей
const (
	persistenceScale = 50.0
	plateScale       = 50.0
	continentScale   = 200.0

	defaultErodScale = 50.0
	minErodibility   = 1e-6
)

// Mesh - результат синтеза: сетка, смещённые точки, маски и параметры
type Mesh struct {
	*mesh.Mesh
	Warped     []vec.Vec2Float
	Candidates []bool
	Params     []SiteParameters
}

// Synthesizer строит сетку и параметры точек по конфигурации генерации
type Synthesizer struct {
	builder mesh.Builder
	log     *logging.Logger
}

// NewSynthesizer создаёт синтезатор; nil builder означает построитель Делоне
func NewSynthesizer(builder mesh.Builder) *Synthesizer {
	if builder == nil {
		builder = mesh.NewDelaunayBuilder()
	}
	return &Synthesizer{
		builder: builder,
		log:     logging.GetTerrainLogger(),
	}
}

// SiteCount возвращает число внутренних точек: floor(ширина × высота × lod)
func SiteCount(cfg config.Generation) int {
	w := cfg.BoundsMax[0] - cfg.BoundsMin[0]
	h := cfg.BoundsMax[1] - cfg.BoundsMin[1]
	return int(math.Floor(w * h * cfg.LOD))
}

// Synthesize строит сетку, маску океана, стоки и податливость пород
func (s *Synthesizer) Synthesize(ctx context.Context, cfg config.Generation) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	min := vec.Vec2Float{X: cfg.BoundsMin[0], Y: cfg.BoundsMin[1]}
	max := vec.Vec2Float{X: cfg.BoundsMax[0], Y: cfg.BoundsMax[1]}
	num := SiteCount(cfg)

	m, err := s.builder.Build(ctx, min, max, num, int64(cfg.Seed))
	if err != nil {
		return nil, fmt.Errorf("построение сетки: %w", err)
	}

	src := noise.NewPerlin(int64(cfg.Seed))
	warper := NewWarper(src, max.Sub(min))

	warped := make([]vec.Vec2Float, m.Len())
	candidates := make([]bool, m.Len())
	for i, site := range m.Sites {
		if i%8192 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		warped[i] = warper.Apply(site)
		candidates[i] = IsOceanCandidate(src, warped[i], cfg.SeaPct)
	}

	outlets, err := DetermineOutlets(candidates, m.BoundaryStart(), m.Graph)
	if err != nil {
		return nil, &GenerationError{Seed: cfg.Seed, Candidates: CountTrue(candidates), Err: err}
	}

	erodScale := cfg.ErodScale
	if erodScale <= 0 {
		erodScale = defaultErodScale
	}
	params := make([]SiteParameters, m.Len())
	for i, p := range warped {
		params[i] = SiteParameters{
			Erodibility: Erodibility(src, p, erodScale, cfg.MountainPct),
			IsOutlet:    outlets[i],
		}
	}

	s.log.Info("синтез сетки: %d точек (%d внутренних), кандидатов в океан %d, стоков %d",
		m.Len(), num, CountTrue(candidates), CountTrue(outlets))

	return &Mesh{
		Mesh:       m,
		Warped:     warped,
		Candidates: candidates,
		Params:     params,
	}, nil
}

// IsOceanCandidate: плита ниже континента за вычетом seaPct
func IsOceanCandidate(src noise.Source, p vec.Vec2Float, seaPct float64) bool {
	persistence := noise.Ridged(src, p.X/persistenceScale, p.Y/persistenceScale, 2, 0.5, 2.0)*0.7 + 0.3
	plate := noise.Octaved(src, p.X/plateScale, p.Y/plateScale, 8, persistence, 2.4)*0.5 + 0.5
	continent := noise.Octaved(src, p.X/continentScale, p.Y/continentScale, 3, 0.5, 1.8)*0.7 + 0.5
	return plate < continent-seaPct
}

// Erodibility возвращает строго положительную податливость пород в точке
func Erodibility(src noise.Source, p vec.Vec2Float, scale, mountainPct float64) float64 {
	v := (noise.Ridged(src, p.X/scale, p.Y/scale, 5, 0.7, 2.2)*4.0 + 0.1) * mountainPct
	if v < minErodibility || math.IsNaN(v) {
		return minErodibility
	}
	return v
}
