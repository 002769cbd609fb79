package pipeline

import (
	"fmt"

	"github.com/annel0/terragen/internal/config"
)

// Mode - режим пирамиды эрозии
type Mode int

const (
	// Incremental эродирует каждый уровень пирамиды по очереди
	Incremental Mode = iota
	// Singular эродирует сразу последний уровень
	Singular
)

func (m Mode) String() string {
	switch m {
	case Incremental:
		return config.ModeIncremental
	case Singular:
		return config.ModeSingular
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode разбирает режим из конфигурации; пустая строка - Incremental
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeIncremental, "":
		return Incremental, nil
	case config.ModeSingular:
		return Singular, nil
	default:
		return Incremental, fmt.Errorf("неизвестный режим эрозии %q", s)
	}
}
