package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/metrics"
	"github.com/annel0/terragen/internal/observability"
	"github.com/annel0/terragen/internal/pipeline"
	"github.com/annel0/terragen/internal/raster"
	"github.com/annel0/terragen/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $TERRAGEN_CONFIG)")
		modeFlag   = flag.String("mode", "", "Режим эрозии: incremental или singular (переопределяет конфигурацию)")
		seedFlag   = flag.Int64("seed", -1, "Сид генерации (переопределяет конфигурацию)")
		preview    = flag.Bool("preview", false, "Построить превью эрозии исходного уровня")
		resume     = flag.Bool("resume", true, "В режиме singular продолжать с сохранённого снимка")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *modeFlag != "" {
		cfg.Generation.Mode = *modeFlag
	}
	if *seedFlag >= 0 {
		cfg.Generation.Seed = uint32(*seedFlag)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Некорректная конфигурация: %v", err)
	}

	if cfg.Logging.ToFile {
		if err := logging.InitDefaultLogger("terragen"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
	}
	lm := logging.GetLoggerManager()
	if err := lm.ApplyLevels(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Components); err != nil {
		log.Fatalf("❌ Ошибка настройки уровней логирования: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *preview, *resume); err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Warn("🛑 Генерация прервана")
		} else {
			logging.Error("❌ %v", err)
		}
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, preview, resume bool) error {
	logging.Info("🌍 Запуск terragen: сид %d, режим %s, циклов %d",
		cfg.Generation.Seed, cfg.Generation.Mode, cfg.Generation.ErosionCycles)

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	pm := metrics.NewPipeline(nil)
	srv := pm.StartHTTP(fmt.Sprintf(":%d", cfg.Telemetry.GetMetricsPort()))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	raster.SetWorkers(cfg.Pipeline.Workers)

	driver, err := pipeline.NewDriver(pipeline.OptionsFromConfig(cfg.Pipeline), pipeline.WithMetrics(pm))
	if err != nil {
		return fmt.Errorf("ошибка создания конвейера: %w", err)
	}

	var store *storage.SnapshotStore
	if cfg.Storage.Enabled {
		store, err = storage.NewSnapshotStore(cfg.Storage.GetDataDir())
		if err != nil {
			return fmt.Errorf("ошибка открытия хранилища снимков: %w", err)
		}
		defer store.Close()
	}

	components := logging.GetLoggerManager().ListComponents()
	sort.Strings(components)
	logging.Debug("Компоненты логирования: %s", strings.Join(components, ", "))

	sess, err := startSession(ctx, driver, store, cfg.Generation, resume)
	if err != nil {
		return err
	}

	if preview {
		if sess, err = driver.ErodePreview(ctx, sess); err != nil {
			return err
		}
	}

	if sess, err = driver.Erode(ctx, sess); err != nil {
		return err
	}

	out := sess.Outputs()
	logging.Info("✅ Готово: run=%s, уровень %d×%d, макс. высота %.2f",
		out.RunID, out.LevelSize, out.LevelSize, out.MaxAltitude)

	if store != nil {
		fp, err := store.Save(ctx, sess)
		if err != nil {
			return fmt.Errorf("ошибка сохранения снимка: %w", err)
		}
		logging.Info("Снимок сохранён: %s (%s)", fp, cfg.Storage.GetDataDir())
	}
	return nil
}

// startSession восстанавливает сессию из снимка (singular) или строит исходный растр заново
func startSession(ctx context.Context, driver *pipeline.Driver, store *storage.SnapshotStore, gen config.Generation, resume bool) (*pipeline.Session, error) {
	if store != nil && resume && gen.Mode == config.ModeSingular {
		sess, err := store.Load(ctx, storage.Fingerprint(gen))
		switch {
		case err == nil:
			logging.Info("♻️ Продолжаем с сохранённого снимка %s", storage.Fingerprint(gen))
			return sess, nil
		case errors.Is(err, storage.ErrSnapshotNotFound):
			logging.Debug("Снимок не найден, генерируем заново")
		default:
			logging.Warn("Не удалось загрузить снимок: %v", err)
		}
	}
	return driver.Generate(ctx, gen)
}
