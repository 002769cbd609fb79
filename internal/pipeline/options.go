package pipeline

import (
	"fmt"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/raster"
	"golang.org/x/image/draw"
)

// Пороги растяжения контраста карты стока
const (
	dischargeLower uint8 = 130
	dischargeUpper uint8 = 200
)

// Options - параметры пирамиды эрозии
type Options struct {
	// Levels - стороны уровней по возрастанию; Levels[0] - сторона исходного растра
	Levels []int
	// Filter - фильтр всех передискретизаций, кроме первичной в режиме Singular
	Filter string
	// SingularFilter - фильтр первичной передискретизации Singular при ненулевом числе циклов
	SingularFilter string
	NoiseMean      float64
	NoiseStdDev    float64
	NoiseSeed      int64
	ErosionScale   float64
	StrictMemory   bool
	ErodibilityMap bool
}

// OptionsFromConfig переносит настройки пирамиды из конфигурации
func OptionsFromConfig(c config.PipelineConfig) Options {
	levels := c.Levels
	if len(levels) == 0 {
		levels = config.DefaultLevels
	}
	return Options{
		Levels:         append([]int(nil), levels...),
		Filter:         c.ResampleFilter,
		SingularFilter: c.SingularFilter,
		NoiseMean:      c.NoiseMean,
		NoiseStdDev:    c.NoiseStdDev,
		NoiseSeed:      c.NoiseSeed,
		ErosionScale:   c.ErosionScale,
		StrictMemory:   c.StrictMemory,
		ErodibilityMap: c.ErodibilityMap,
	}
}

// DefaultOptions - параметры по умолчанию
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Pipeline)
}

func (o Options) validate() error {
	if len(o.Levels) == 0 {
		return fmt.Errorf("pipeline: не заданы уровни пирамиды")
	}
	for i, size := range o.Levels {
		if size < 2 || (i > 0 && size <= o.Levels[i-1]) {
			return fmt.Errorf("pipeline: некорректные уровни пирамиды %v", o.Levels)
		}
	}
	if _, err := raster.KernelByName(o.Filter); err != nil {
		return err
	}
	if _, err := raster.KernelByName(o.SingularFilter); err != nil {
		return err
	}
	return nil
}

// BaseSize - сторона исходного растра
func (o Options) BaseSize() int {
	return o.Levels[0]
}

// TerminalSize - сторона последнего уровня
func (o Options) TerminalSize() int {
	return o.Levels[len(o.Levels)-1]
}

func (o Options) kernel() *draw.Kernel {
	k, _ := raster.KernelByName(o.Filter)
	return k
}

func (o Options) singularKernel() *draw.Kernel {
	k, _ := raster.KernelByName(o.SingularFilter)
	return k
}
