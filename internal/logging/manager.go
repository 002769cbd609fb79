package logging

import (
	"fmt"
	"sync"
)

// LoggerManager управляет множественными логгерами для разных компонентов
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers: make(map[string]*Logger),
		}
	})
	return globalManager
}

// GetLogger возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger, nil
	}
	lm.mu.RUnlock()

	// Создаем новый логгер под write lock
	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Проверяем еще раз на случай race condition
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger for %s: %w", component, err)
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или логгер по умолчанию при ошибке
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return defaultLogger
	}
	return logger
}

// ListComponents возвращает список всех зарегистрированных компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	return components
}

// SetLogLevel устанавливает уровень логирования для компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("logger for component %s not found", component)
	}

	logger.mu.Lock()
	logger.minConsoleLevel = consoleLevel
	logger.minFileLevel = fileLevel
	logger.mu.Unlock()
	return nil
}

// ApplyLevels задает общий порог консоли всем уже созданным логгерам и
// логгеру по умолчанию, затем применяет пороги отдельных компонентов
func (lm *LoggerManager) ApplyLevels(level LogLevel, overrides map[string]string) error {
	SetDefaultLevel(level)

	defaultLogger.mu.Lock()
	fileLevel := defaultLogger.minFileLevel
	defaultLogger.mu.Unlock()

	for _, component := range lm.ListComponents() {
		if _, ok := overrides[component]; ok {
			continue
		}
		if err := lm.SetLogLevel(component, level, fileLevel); err != nil {
			return err
		}
	}
	for component, name := range overrides {
		if _, err := lm.GetLogger(component); err != nil {
			return err
		}
		if err := lm.SetLogLevel(component, ParseLevel(name), fileLevel); err != nil {
			return err
		}
	}
	return nil
}

// Удобные функции для получения логгеров
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetMeshLogger() *Logger {
	return GetComponentLogger("mesh")
}

func GetTerrainLogger() *Logger {
	return GetComponentLogger("terrain")
}

func GetErosionLogger() *Logger {
	return GetComponentLogger("erosion")
}

func GetPipelineLogger() *Logger {
	return GetComponentLogger("pipeline")
}

func GetStorageLogger() *Logger {
	return GetComponentLogger("storage")
}
