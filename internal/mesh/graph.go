package mesh

// Neighbor - ребро графа сетки с весом (евклидовой длиной)
type Neighbor struct {
	Index  int
	Weight float64
}

// Graph - неориентированный взвешенный граф смежности точек сетки.
// После построения граф только читается.
type Graph struct {
	adj [][]Neighbor
}

// NewGraph создаёт пустой граф на n вершинах
func NewGraph(n int) *Graph {
	return &Graph{adj: make([][]Neighbor, n)}
}

// AddEdge добавляет неориентированное ребро; повторные рёбра и петли игнорируются
func (g *Graph) AddEdge(a, b int, weight float64) {
	if a == b || g.HasEdge(a, b) {
		return
	}
	g.adj[a] = append(g.adj[a], Neighbor{Index: b, Weight: weight})
	g.adj[b] = append(g.adj[b], Neighbor{Index: a, Weight: weight})
}

// HasEdge проверяет наличие ребра
func (g *Graph) HasEdge(a, b int) bool {
	for _, n := range g.adj[a] {
		if n.Index == b {
			return true
		}
	}
	return false
}

// NeighborsOf возвращает соседей вершины i
func (g *Graph) NeighborsOf(i int) []Neighbor {
	return g.adj[i]
}

// Len возвращает число вершин
func (g *Graph) Len() int {
	return len(g.adj)
}

// EdgeCount возвращает число неориентированных рёбер
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.adj {
		total += len(n)
	}
	return total / 2
}
