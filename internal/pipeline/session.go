package pipeline

import (
	"fmt"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/google/uuid"
)

// Outputs - результаты прогона. Буферы не изменяются после возврата:
// каждая стадия создаёт новые.
type Outputs struct {
	RunID       uuid.UUID
	Seed        uint32
	Mode        Mode
	BaseSize    int
	LevelSize   int
	MaxAltitude float64

	RawMap512   []uint16  // исходный растр, сторона BaseSize
	ColorMap512 []uint8   // RGB превью исходного растра
	Erodibility []float32 // карта эродируемости, сторона BaseSize; nil - однородная

	ErodedRaw512   []uint16 // превью эрозии на исходном уровне
	ErodedColor512 []uint8  // RGBA превью эрозии

	ErodedFull []uint16 // эродированный растр последнего уровня, сторона LevelSize
	Discharge  []uint8  // сток последнего уровня с растянутым контрастом
}

// HasFull сообщает, построен ли последний уровень
func (o Outputs) HasFull() bool {
	return len(o.ErodedFull) > 0
}

// Session - состояние между вызовами конвейера: конфигурация, сетка и
// предыдущий растр последнего уровня для режима Singular
type Session struct {
	cfg     config.Generation
	mesh    *terrain.Mesh
	outputs Outputs

	raw         *raster.HeightMap
	erodibility []float32
	full        *raster.HeightMap
}

// Config возвращает параметры генерации сессии
func (s *Session) Config() config.Generation {
	return s.cfg
}

// Mesh возвращает синтезированную сетку (nil для восстановленных сессий)
func (s *Session) Mesh() *terrain.Mesh {
	return s.mesh
}

// Outputs возвращает результаты сессии
func (s *Session) Outputs() Outputs {
	return s.outputs
}

// WithConfig возвращает копию сессии с другими параметрами генерации
// (например, другим режимом или числом циклов); растры сохраняются.
func (s *Session) WithConfig(cfg config.Generation) *Session {
	next := *s
	next.cfg = cfg
	return &next
}

// Restore собирает сессию из сохранённых результатов (см. storage.SnapshotStore)
func Restore(cfg config.Generation, out Outputs) (*Session, error) {
	s := &Session{cfg: cfg, outputs: out}
	if len(out.RawMap512) > 0 {
		raw, err := raster.WrapHeightMap(out.RawMap512, out.BaseSize, out.BaseSize)
		if err != nil {
			return nil, err
		}
		s.raw = raw
	}
	if out.Erodibility != nil {
		if len(out.Erodibility) != out.BaseSize*out.BaseSize {
			return nil, fmt.Errorf("%w: карта эродируемости %d, ожидалось %d×%d",
				ErrInvalidRasterDimensions, len(out.Erodibility), out.BaseSize, out.BaseSize)
		}
		s.erodibility = out.Erodibility
	}
	if out.HasFull() {
		full, err := raster.WrapHeightMap(out.ErodedFull, out.LevelSize, out.LevelSize)
		if err != nil {
			return nil, err
		}
		s.full = full
	}
	return s, nil
}

// hasTerminal сообщает, что в сессии есть растр последнего уровня стороны size
func (s *Session) hasTerminal(size int) bool {
	return s.full != nil && s.full.Width == size && s.full.Height == size
}

func (s *Session) derive() *Session {
	next := *s
	return &next
}
