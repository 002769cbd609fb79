package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/terragen/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline инкапсулирует Prometheus-метрики конвейера генерации.
//
// Метрики:
// * terragen_stage_duration_seconds{stage} - histogram
// * terragen_erosion_particles_total{level} - counter
// * terragen_generation_errors_total{stage} - counter
// * terragen_outlets - gauge (стоки последней синтезированной сетки)
type Pipeline struct {
	stageDuration *prometheus.HistogramVec
	particles     *prometheus.CounterVec
	errors        *prometheus.CounterVec
	outlets       prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewPipeline создаёт метрики и регистрирует их в reg; nil - глобальный регистр.
// Повторная регистрация в том же регистре переиспользует уже существующие коллекторы.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Pipeline{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terragen",
			Name:      "stage_duration_seconds",
			Help:      "Длительность стадий конвейера генерации.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1200},
		}, []string{"stage"}),
		particles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "erosion_particles_total",
			Help:      "Общее число смоделированных частиц по уровням пирамиды.",
		}, []string{"level"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "generation_errors_total",
			Help:      "Ошибки генерации по стадиям.",
		}, []string{"stage"}),
		outlets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terragen",
			Name:      "outlets",
			Help:      "Количество стоков в последней синтезированной сетке.",
		}),
		gatherer: prometheus.DefaultGatherer,
	}

	p.stageDuration = register(reg, p.stageDuration)
	p.particles = register(reg, p.particles)
	p.errors = register(reg, p.errors)
	p.outlets = register(reg, p.outlets)

	if g, ok := reg.(prometheus.Gatherer); ok {
		p.gatherer = g
	}
	return p
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logging.Warn("Не удалось зарегистрировать метрику: %v", err)
	}
	return c
}

// ObserveStage записывает длительность стадии
func (p *Pipeline) ObserveStage(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddParticles увеличивает счётчик частиц уровня
func (p *Pipeline) AddParticles(level string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.particles.WithLabelValues(level).Add(float64(n))
}

// IncError учитывает ошибку стадии
func (p *Pipeline) IncError(stage string) {
	if p == nil {
		return
	}
	p.errors.WithLabelValues(stage).Inc()
}

// SetOutlets фиксирует число стоков сетки
func (p *Pipeline) SetOutlets(n int) {
	if p == nil {
		return
	}
	p.outlets.Set(float64(n))
}

// Handler возвращает HTTP-обработчик /metrics для регистра метрик
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: сервер стартует в отдельной горутине. Возвращает сервер для Shutdown.
func (p *Pipeline) StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
