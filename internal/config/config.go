package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Режимы пирамиды эрозии
const (
	ModeIncremental = "incremental"
	ModeSingular    = "singular"
)

// Фильтры передискретизации
const (
	FilterLanczos3   = "lanczos3"
	FilterCatmullRom = "catmullrom"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Generation Generation      `yaml:"generation"`
	Pipeline   PipelineConfig  `yaml:"pipeline"`
	Storage    StorageConfig   `yaml:"storage"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// Generation - неизменяемые параметры одного прогона генерации.
// SeaPct задаётся долей в [0, 1], а не процентами.
type Generation struct {
	Seed          uint32     `yaml:"seed"`
	BoundsMin     [2]float64 `yaml:"bounds_min"`
	BoundsMax     [2]float64 `yaml:"bounds_max"`
	LOD           float64    `yaml:"lod"`
	ErodScale     float64    `yaml:"erod_scale"`
	MountainPct   float64    `yaml:"mountain_pct"`
	SeaPct        float64    `yaml:"sea_pct"`
	ErosionCycles uint64     `yaml:"erosion_cycles"`
	Mode          string     `yaml:"mode"`
}

// PipelineConfig управляет пирамидой эрозии
type PipelineConfig struct {
	ResampleFilter string `yaml:"resample_filter"`
	// SingularFilter - фильтр первичной передискретизации в режиме singular при erosion_cycles > 0
	SingularFilter string  `yaml:"singular_filter"`
	NoiseMean      float64 `yaml:"noise_mean"`
	NoiseStdDev    float64 `yaml:"noise_stddev"`
	NoiseSeed      int64   `yaml:"noise_seed"`
	ErosionScale   float64 `yaml:"erosion_scale"`
	StrictMemory   bool    `yaml:"strict_memory"`
	Workers        int     `yaml:"workers"`
	ErodibilityMap bool    `yaml:"erodibility_map"`
	// Levels - стороны уровней пирамиды по возрастанию; первый уровень - исходный растр
	Levels []int `yaml:"levels"`
}

// DefaultLevels - уровни пирамиды эрозии по умолчанию
var DefaultLevels = []int{512, 1024, 2048, 4096, 8192}

// StorageConfig описывает хранилище снимков сессии
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	Enabled bool   `yaml:"enabled"`
}

// TelemetryConfig описывает метрики и трассировку
type TelemetryConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	ServiceName string `yaml:"service_name"`
	Tracing     bool   `yaml:"tracing"`
}

// LoggingConfig описывает логирование
type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
	// Components - пороги отдельных компонентов (mesh, erosion, storage...)
	Components map[string]string `yaml:"components"`
}

// DefaultGeneration возвращает параметры генерации по умолчанию
func DefaultGeneration() Generation {
	return Generation{
		Seed:          42949,
		BoundsMin:     [2]float64{0, 0},
		BoundsMax:     [2]float64{100, 100},
		LOD:           4.0,
		ErodScale:     50.0,
		MountainPct:   25.0,
		SeaPct:        0.05,
		ErosionCycles: 2,
		Mode:          ModeIncremental,
	}
}

// Default возвращает полную конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Generation: DefaultGeneration(),
		Pipeline: PipelineConfig{
			ResampleFilter: FilterLanczos3,
			SingularFilter: FilterCatmullRom,
			NoiseMean:      1.5,
			NoiseStdDev:    0.5,
			NoiseSeed:      284732,
			ErosionScale:   1.0,
			Workers:        0,
			ErodibilityMap: true,
			Levels:         append([]int(nil), DefaultLevels...),
		},
		Storage: StorageConfig{
			DataDir: "data",
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "terragen",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate проверяет параметры генерации
func (g Generation) Validate() error {
	if g.BoundsMax[0] <= g.BoundsMin[0] || g.BoundsMax[1] <= g.BoundsMin[1] {
		return fmt.Errorf("некорректные границы карты: min=%v max=%v", g.BoundsMin, g.BoundsMax)
	}
	if g.LOD <= 0 {
		return fmt.Errorf("lod должен быть положительным, получено %v", g.LOD)
	}
	if g.MountainPct < 0 {
		return fmt.Errorf("mountain_pct не может быть отрицательным, получено %v", g.MountainPct)
	}
	switch g.Mode {
	case ModeIncremental, ModeSingular, "":
	default:
		return fmt.Errorf("неизвестный режим эрозии %q", g.Mode)
	}
	return nil
}

// Validate проверяет настройки пирамиды
func (p PipelineConfig) Validate() error {
	for _, filter := range []string{p.ResampleFilter, p.SingularFilter} {
		switch filter {
		case FilterLanczos3, FilterCatmullRom, "":
		default:
			return fmt.Errorf("неизвестный фильтр передискретизации %q", filter)
		}
	}
	if p.NoiseStdDev < 0 {
		return fmt.Errorf("noise_stddev не может быть отрицательным")
	}
	if p.ErosionScale < 0 {
		return fmt.Errorf("erosion_scale не может быть отрицательным")
	}
	for i, size := range p.Levels {
		if size < 2 {
			return fmt.Errorf("уровень пирамиды %d слишком мал: %d", i, size)
		}
		if i > 0 && size <= p.Levels[i-1] {
			return fmt.Errorf("уровни пирамиды должны возрастать: %v", p.Levels)
		}
	}
	return nil
}

// Validate проверяет всю конфигурацию
func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (t *TelemetryConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(t.MetricsPort, "TERRAGEN_METRICS_PORT", 2112)
}

// GetDataDir возвращает каталог хранилища: config -> env -> default
func (s *StorageConfig) GetDataDir() string {
	if s.DataDir != "" {
		return s.DataDir
	}
	if envVal := os.Getenv("TERRAGEN_DATA_DIR"); envVal != "" {
		return envVal
	}
	return "data"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV TERRAGEN_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TERRAGEN_CONFIG")
		if path == "" {
			return Default(), nil // конфиг не задан - использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
