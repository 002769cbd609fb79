package elevation

import (
	"context"
	"errors"

	"github.com/annel0/terragen/internal/mesh"
	"github.com/annel0/terragen/internal/vec"
)

var (
	// ErrParameterMismatch - число параметров не совпадает с числом точек сетки
	ErrParameterMismatch = errors.New("elevation: число параметров не совпадает с числом точек")
	// ErrNoOutlets - среди параметров нет ни одного стока
	ErrNoOutlets = errors.New("elevation: нет ни одного стока")
)

// SiteParameters - параметры точки сетки для решателя рельефа
type SiteParameters struct {
	Erodibility float64
	IsOutlet    bool
}

// Field - непрерывная поверхность высот, допускающая точечные запросы.
// Elevation возвращает false для точек вне решённой сетки.
type Field interface {
	Elevation(p vec.Vec2Float) (float64, bool)
	MaxElevation() float64
}

// Solver - внешний решатель эволюции ландшафта
type Solver interface {
	Solve(ctx context.Context, m *mesh.Mesh, params []SiteParameters) (Field, error)
}
