package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("erosion", &buf, INFO)

	l.Debug("не должно попасть")
	l.Info("цикл %d", 3)
	l.Error("ошибка")

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть", "DEBUG ниже порога не выводится")
	assert.Contains(t, out, "[INFO] [erosion] цикл 3")
	assert.Contains(t, out, "[ERROR] [erosion] ошибка")
}

func TestLoggerManager_ReturnsSameLogger(t *testing.T) {
	lm := GetLoggerManager()

	a, err := lm.GetLogger("mesh-test")
	require.NoError(t, err)
	b, err := lm.GetLogger("mesh-test")
	require.NoError(t, err)

	assert.Same(t, a, b, "Повторный запрос должен вернуть тот же логгер")
	assert.Contains(t, lm.ListComponents(), "mesh-test")
	assert.NoError(t, lm.SetLogLevel("mesh-test", WARN, ERROR))
	assert.Error(t, lm.SetLogLevel("unknown-component", WARN, ERROR))
}

func TestLoggerManager_ApplyLevels(t *testing.T) {
	lm := GetLoggerManager()
	t.Cleanup(func() { SetDefaultLevel(INFO) })

	existing, err := lm.GetLogger("levels-existing")
	require.NoError(t, err)

	require.NoError(t, lm.ApplyLevels(WARN, map[string]string{"levels-override": "debug"}))

	assert.Equal(t, WARN, existing.minConsoleLevel, "Уже созданный логгер получает общий порог")
	assert.Contains(t, lm.ListComponents(), "levels-override", "Компонент из настроек регистрируется")

	override := lm.MustGetLogger("levels-override")
	assert.Equal(t, DEBUG, override.minConsoleLevel)

	fresh, err := lm.GetLogger("levels-fresh")
	require.NoError(t, err)
	assert.Equal(t, WARN, fresh.minConsoleLevel, "Новый логгер наследует порог по умолчанию")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, INFO, ParseLevel("что-то"))
	assert.Equal(t, "TRACE", TRACE.String())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })
}
