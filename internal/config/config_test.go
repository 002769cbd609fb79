package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	data := []byte(`
generation:
  seed: 7
  bounds_max: [50, 40]
  lod: 2.5
  erosion_cycles: 0
  mode: singular
pipeline:
  resample_filter: catmullrom
  singular_filter: lanczos3
  levels: [32, 64, 128]
logging:
  level: warn
  components:
    erosion: debug
`)
	cfg, err := Parse(data)
	require.NoError(t, err, "Корректный YAML должен разбираться")

	assert.Equal(t, uint32(7), cfg.Generation.Seed)
	assert.Equal(t, [2]float64{50, 40}, cfg.Generation.BoundsMax)
	assert.Equal(t, 2.5, cfg.Generation.LOD)
	assert.Equal(t, ModeSingular, cfg.Generation.Mode)
	assert.Equal(t, FilterCatmullRom, cfg.Pipeline.ResampleFilter)
	assert.Equal(t, FilterLanczos3, cfg.Pipeline.SingularFilter)
	assert.Equal(t, []int{32, 64, 128}, cfg.Pipeline.Levels)
	assert.Equal(t, map[string]string{"erosion": "debug"}, cfg.Logging.Components)

	// Незаданные поля остаются по умолчанию
	assert.Equal(t, 25.0, cfg.Generation.MountainPct)
	assert.Equal(t, 1.5, cfg.Pipeline.NoiseMean)
	assert.True(t, cfg.Pipeline.ErodibilityMap)
	assert.Equal(t, DefaultLevels, Default().Pipeline.Levels)
	assert.Equal(t, FilterCatmullRom, Default().Pipeline.SingularFilter)
}

func TestParse_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"границы":  "generation:\n  bounds_max: [0, 0]\n",
		"lod":      "generation:\n  lod: 0\n",
		"режим":    "generation:\n  mode: turbo\n",
		"фильтр":   "pipeline:\n  resample_filter: box\n",
		"синтаксис": "generation: [",
		"уровни":    "pipeline:\n  levels: [64, 32]\n",
	}
	for name, data := range cases {
		_, err := Parse([]byte(data))
		assert.Error(t, err, "Ожидалась ошибка для случая %s", name)
	}

	_, err := Parse([]byte("pipeline:\n  singular_filter: box\n"))
	assert.Error(t, err, "Фильтр singular проверяется так же, как основной")
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("TERRAGEN_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeneration(), cfg.Generation)
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terragen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  seed: 99\n"), 0644))
	t.Setenv("TERRAGEN_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(99), cfg.Generation.Seed)
}

func TestFallbacks(t *testing.T) {
	t.Setenv("TERRAGEN_METRICS_PORT", "9100")
	tc := TelemetryConfig{}
	assert.Equal(t, 9100, tc.GetMetricsPort(), "Порт берётся из окружения")
	tc.MetricsPort = 9200
	assert.Equal(t, 9200, tc.GetMetricsPort(), "Порт из конфига приоритетнее")

	t.Setenv("TERRAGEN_DATA_DIR", "/tmp/terragen")
	sc := StorageConfig{}
	assert.Equal(t, "/tmp/terragen", sc.GetDataDir())
}
