package pipeline

import (
	"errors"
	"fmt"

	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/terrain"
)

var (
	// ErrMissingPrerequisiteRaster - эрозия запрошена до построения исходного растра
	ErrMissingPrerequisiteRaster = errors.New("pipeline: исходный растр не построен")
	// ErrInsufficientMemory - не хватает памяти для последнего уровня пирамиды
	ErrInsufficientMemory = errors.New("pipeline: недостаточно памяти для уровня")

	// Ошибки нижних стадий, переэкспортированы для вызывающих
	ErrNoReachableOutlet         = terrain.ErrNoReachableOutlet
	ErrInvalidRasterDimensions   = raster.ErrInvalidRasterDimensions
	ErrUnresolvedElevationSample = raster.ErrUnresolvedElevationSample
)

// Стадии конвейера
const (
	StageSynthesize = "synthesize"
	StageSolve      = "solve"
	StageRasterize  = "rasterize"
	StagePreview    = "preview"
	StageErode      = "erode"
	StageReadout    = "readout"
)

// StageError - ошибка с указанием стадии конвейера
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("стадия %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
