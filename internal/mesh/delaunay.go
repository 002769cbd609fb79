package mesh

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/vec"
	"github.com/fogleman/delaunay"
)

// DelaunayBuilder строит сетку по триангуляции Делоне
type DelaunayBuilder struct {
	Relaxations int     // число проходов релаксации Ллойда
	EdgeSpacing float64 // шаг граничных точек; 0 - средний шаг внутренних точек
	log         *logging.Logger
}

// NewDelaunayBuilder создаёт построитель с одной релаксацией, как в исходном генераторе
func NewDelaunayBuilder() *DelaunayBuilder {
	return &DelaunayBuilder{
		Relaxations: 1,
		log:         logging.GetMeshLogger(),
	}
}

// Build реализует Builder
func (b *DelaunayBuilder) Build(ctx context.Context, min, max vec.Vec2Float, num int, seed int64) (*Mesh, error) {
	if num <= 0 {
		return nil, ErrEmptyMesh
	}
	if max.X <= min.X || max.Y <= min.Y {
		return nil, fmt.Errorf("mesh: вырожденные границы %v..%v", min, max)
	}

	rng := rand.New(rand.NewSource(seed))
	sites := make([]vec.Vec2Float, num, num+num/8+4)
	for i := range sites {
		sites[i] = vec.Vec2Float{
			X: min.X + rng.Float64()*(max.X-min.X),
			Y: min.Y + rng.Float64()*(max.Y-min.Y),
		}
	}

	for r := 0; r < b.Relaxations; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		relaxed, err := relax(sites, min, max)
		if err != nil {
			return nil, err
		}
		sites = relaxed
	}

	spacing := b.EdgeSpacing
	if spacing <= 0 {
		spacing = math.Sqrt((max.X - min.X) * (max.Y - min.Y) / float64(num))
	}
	sites = append(sites, edgeSites(min, max, spacing)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	triangles, err := triangulate(sites)
	if err != nil {
		return nil, err
	}

	graph := NewGraph(len(sites))
	areas := make([]float64, len(sites))
	for t := 0; t+2 < len(triangles); t += 3 {
		a, bb, c := triangles[t], triangles[t+1], triangles[t+2]
		graph.AddEdge(a, bb, sites[a].DistanceTo(sites[bb]))
		graph.AddEdge(bb, c, sites[bb].DistanceTo(sites[c]))
		graph.AddEdge(c, a, sites[c].DistanceTo(sites[a]))

		third := triangleArea(sites[a], sites[bb], sites[c]) / 3
		areas[a] += third
		areas[bb] += third
		areas[c] += third
	}

	if b.log != nil {
		b.log.Debug("сетка построена: %d внутренних, %d граничных точек, %d треугольников, %d рёбер",
			num, len(sites)-num, len(triangles)/3, graph.EdgeCount())
	}

	return &Mesh{
		Sites:     sites,
		Num:       num,
		Graph:     graph,
		Triangles: triangles,
		Areas:     areas,
		Min:       min,
		Max:       max,
	}, nil
}

// relax выполняет один проход релаксации Ллойда: центроид ячейки Вороного
// приближается взвешенным по площади средним центроидов смежных треугольников.
func relax(sites []vec.Vec2Float, min, max vec.Vec2Float) ([]vec.Vec2Float, error) {
	triangles, err := triangulate(sites)
	if err != nil {
		return nil, err
	}

	sum := make([]vec.Vec2Float, len(sites))
	weight := make([]float64, len(sites))
	for t := 0; t+2 < len(triangles); t += 3 {
		a, b, c := sites[triangles[t]], sites[triangles[t+1]], sites[triangles[t+2]]
		area := triangleArea(a, b, c)
		centroid := a.Add(b).Add(c).Mul(1.0 / 3.0)
		for _, idx := range triangles[t : t+3] {
			sum[idx] = sum[idx].Add(centroid.Mul(area))
			weight[idx] += area
		}
	}

	relaxed := make([]vec.Vec2Float, len(sites), cap(sites))
	for i, s := range sites {
		if weight[i] <= 0 {
			relaxed[i] = s
			continue
		}
		p := sum[i].Mul(1 / weight[i])
		relaxed[i] = vec.Vec2Float{
			X: clamp(p.X, min.X, max.X),
			Y: clamp(p.Y, min.Y, max.Y),
		}
	}
	return relaxed, nil
}

// edgeSites возвращает точки по периметру прямоугольника с шагом не больше spacing
func edgeSites(min, max vec.Vec2Float, spacing float64) []vec.Vec2Float {
	nx := int(math.Ceil((max.X - min.X) / spacing))
	ny := int(math.Ceil((max.Y - min.Y) / spacing))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	out := make([]vec.Vec2Float, 0, 2*(nx+ny))
	for i := 0; i < nx; i++ {
		x := min.X + (max.X-min.X)*float64(i)/float64(nx)
		out = append(out, vec.Vec2Float{X: x, Y: min.Y})
	}
	for j := 0; j < ny; j++ {
		y := min.Y + (max.Y-min.Y)*float64(j)/float64(ny)
		out = append(out, vec.Vec2Float{X: max.X, Y: y})
	}
	for i := nx; i > 0; i-- {
		x := min.X + (max.X-min.X)*float64(i)/float64(nx)
		out = append(out, vec.Vec2Float{X: x, Y: max.Y})
	}
	for j := ny; j > 0; j-- {
		y := min.Y + (max.Y-min.Y)*float64(j)/float64(ny)
		out = append(out, vec.Vec2Float{X: min.X, Y: y})
	}
	return out
}

func triangulate(sites []vec.Vec2Float) ([]int, error) {
	points := make([]delaunay.Point, len(sites))
	for i, s := range sites {
		points[i] = delaunay.Point{X: s.X, Y: s.Y}
	}
	t, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, fmt.Errorf("mesh: ошибка триангуляции: %w", err)
	}
	return t.Triangles, nil
}

func triangleArea(a, b, c vec.Vec2Float) float64 {
	return math.Abs(b.Sub(a).Cross(c.Sub(a))) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
