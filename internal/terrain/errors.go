package terrain

import (
	"errors"
	"fmt"
)

// ErrNoReachableOutlet - ни одна граничная точка не является кандидатом в океан.
// Вызывающий может повторить генерацию с другим sea_pct или сидом.
var ErrNoReachableOutlet = errors.New("terrain: нет достижимых стоков на границе карты")

// GenerationError описывает провал попытки генерации сетки
type GenerationError struct {
	Seed       uint32
	Candidates int
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("генерация (seed=%d, кандидатов в океан=%d): %v", e.Seed, e.Candidates, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
