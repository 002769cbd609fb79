package elevation

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/vec"
)

// StreamPowerSolver вычисляет равновесный рельеф по закону мощности потока:
// uplift = k * A^m * S^n. Дерево стока строится поиском кратчайших путей
// от стоков, площадь водосбора накапливается вниз по течению.
type StreamPowerSolver struct {
	UpliftRate float64
	M          float64
	N          float64
	log        *logging.Logger
}

// NewStreamPowerSolver создаёт решатель с классическими показателями m=0.5, n=1
func NewStreamPowerSolver() *StreamPowerSolver {
	return &StreamPowerSolver{
		UpliftRate: 1.0,
		M:          0.5,
		N:          1.0,
		log:        logging.GetComponentLogger("elevation"),
	}
}

// Solve реализует Solver
func (s *StreamPowerSolver) Solve(ctx context.Context, m *mesh.Mesh, params []SiteParameters) (Field, error) {
	n := m.Len()
	if len(params) != n {
		return nil, fmt.Errorf("%w: %d параметров на %d точек", ErrParameterMismatch, len(params), n)
	}

	receivers := make([]int, n)
	dist := make([]float64, n)
	for i := range receivers {
		receivers[i] = -1
		dist[i] = math.Inf(1)
	}

	// Поиск кратчайших путей от всех стоков одновременно
	pq := &siteQueue{}
	for i, p := range params {
		if p.IsOutlet {
			receivers[i] = i
			dist[i] = 0
			heap.Push(pq, queueItem{site: i, priority: 0})
		}
	}
	if pq.Len() == 0 {
		return nil, ErrNoOutlets
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		i := item.site
		if done[i] {
			continue
		}
		done[i] = true
		order = append(order, i)

		if len(order)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for _, nb := range m.Graph.NeighborsOf(i) {
			j := nb.Index
			if done[j] || params[j].IsOutlet {
				continue
			}
			d := dist[i] + nb.Weight
			if d < dist[j] {
				dist[j] = d
				receivers[j] = i
				heap.Push(pq, queueItem{site: j, priority: d})
			}
		}
	}

	// Площадь водосбора: от истоков к стокам
	area := make([]float64, n)
	copy(area, m.Areas)
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		if r := receivers[i]; r != i {
			area[r] += area[i]
		}
	}

	// Высоты: от стоков к истокам
	heights := make([]float64, n)
	for i := range heights {
		heights[i] = math.NaN()
	}
	maxElevation := 0.0
	for _, i := range order {
		r := receivers[i]
		if r == i {
			heights[i] = 0
			continue
		}
		k := params[i].Erodibility
		if k <= 0 {
			k = math.SmallestNonzeroFloat64
		}
		a := math.Max(area[i], 1e-9)
		slope := math.Pow(s.UpliftRate/(k*math.Pow(a, s.M)), 1/s.N)
		heights[i] = heights[r] + slope*m.Sites[i].DistanceTo(m.Sites[r])
		if heights[i] > maxElevation {
			maxElevation = heights[i]
		}
	}

	if unreached := n - len(order); unreached > 0 && s.log != nil {
		s.log.Debug("%d точек не связаны со стоками и остаются без высоты", unreached)
	}

	return &MeshField{
		sites:     m.Sites,
		triangles: m.Triangles,
		heights:   heights,
		max:       maxElevation,
		grid:      newTriangleGrid(m.Sites, m.Triangles, m.Min, m.Max),
	}, nil
}

// MeshField - поле высот, интерполируемое барицентрически по треугольникам сетки
type MeshField struct {
	sites     []vec.Vec2Float
	triangles []int
	heights   []float64
	max       float64
	grid      *triangleGrid
}

// NewMeshField создаёт поле по готовым высотам точек (NaN - высота не определена)
func NewMeshField(m *mesh.Mesh, heights []float64) (*MeshField, error) {
	if len(heights) != m.Len() {
		return nil, fmt.Errorf("%w: %d высот на %d точек", ErrParameterMismatch, len(heights), m.Len())
	}
	maxElevation := 0.0
	for _, h := range heights {
		if !math.IsNaN(h) && h > maxElevation {
			maxElevation = h
		}
	}
	return &MeshField{
		sites:     m.Sites,
		triangles: m.Triangles,
		heights:   heights,
		max:       maxElevation,
		grid:      newTriangleGrid(m.Sites, m.Triangles, m.Min, m.Max),
	}, nil
}

// Elevation реализует Field
func (f *MeshField) Elevation(p vec.Vec2Float) (float64, bool) {
	for _, t := range f.grid.candidates(p) {
		ia, ib, ic := f.triangles[3*t], f.triangles[3*t+1], f.triangles[3*t+2]
		wa, wb, wc, ok := barycentric(f.sites[ia], f.sites[ib], f.sites[ic], p)
		if !ok {
			continue
		}
		h := wa*f.heights[ia] + wb*f.heights[ib] + wc*f.heights[ic]
		if math.IsNaN(h) {
			return 0, false
		}
		return h, true
	}
	return 0, false
}

// MaxElevation реализует Field
func (f *MeshField) MaxElevation() float64 {
	return f.max
}

// SiteElevations возвращает высоты точек сетки
func (f *MeshField) SiteElevations() []float64 {
	return f.heights
}

type queueItem struct {
	site     int
	priority float64
}

// siteQueue - min-куча для поиска кратчайших путей
type siteQueue []queueItem

func (q siteQueue) Len() int { return len(q) }
func (q siteQueue) Less(i, j int) bool {
	if q[i].priority == q[j].priority {
		return q[i].site < q[j].site
	}
	return q[i].priority < q[j].priority
}
func (q siteQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *siteQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *siteQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
