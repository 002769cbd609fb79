package mesh

import (
	"context"
	"errors"

	"github.com/annel0/terragen/internal/vec"
)

// ErrEmptyMesh возвращается, когда запрошено нулевое число точек
var ErrEmptyMesh = errors.New("mesh: нет точек для построения сетки")

// Site - точка сетки; после построения не меняется
type Site = vec.Vec2Float

// Mesh - нерегулярная сетка: точки, граф смежности и треугольники.
// Первые Num точек внутренние, граничные дописаны после них.
type Mesh struct {
	Sites     []Site
	Num       int
	Graph     *Graph
	Triangles []int     // тройки индексов точек
	Areas     []float64 // площадь ячейки каждой точки (треть площади смежных треугольников)
	Min, Max  vec.Vec2Float
}

// BoundaryStart возвращает первый индекс диапазона граничных точек, засеваемых при поиске стоков
func (m *Mesh) BoundaryStart() int {
	return m.Num + 1
}

// Len возвращает общее число точек
func (m *Mesh) Len() int {
	return len(m.Sites)
}

// Builder строит сетку: случайные точки, релаксация, граничные точки, граф.
// Реализация должна быть детерминированной для одинакового seed.
type Builder interface {
	Build(ctx context.Context, min, max vec.Vec2Float, num int, seed int64) (*Mesh, error)
}
