package terrain

import "github.com/annel0/terragen/internal/mesh"

// OutletMask - признак стока для каждой точки сетки
type OutletMask = []bool

// DetermineOutlets отмечает стоки: поиск в ширину от граничных точек-кандидатов
// (индексы [boundaryStart, len)) только по рёбрам в непосещённых кандидатов.
// Изолированные внутренние карманы океана стоками не становятся.
func DetermineOutlets(candidates []bool, boundaryStart int, graph *mesh.Graph) (OutletMask, error) {
	if boundaryStart < 0 {
		boundaryStart = 0
	}

	queue := make([]int, 0, 64)
	for i := boundaryStart; i < len(candidates); i++ {
		if candidates[i] {
			queue = append(queue, i)
		}
	}
	if len(queue) == 0 {
		return nil, ErrNoReachableOutlet
	}

	outlets := make(OutletMask, len(candidates))
	for _, i := range queue {
		outlets[i] = true
	}
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		for _, n := range graph.NeighborsOf(i) {
			j := n.Index
			if !outlets[j] && candidates[j] {
				outlets[j] = true
				queue = append(queue, j)
			}
		}
	}

	return outlets, nil
}

// CountTrue возвращает число отмеченных элементов маски
func CountTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}
