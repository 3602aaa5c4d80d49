package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	ProductsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "produtos_criados_total",
			Help: "Total de produtos cadastrados",
		},
	)
	ProductsUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "produtos_atualizados_total",
			Help: "Total de produtos atualizados",
		},
	)
	ProductsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "produtos_excluidos_total",
			Help: "Total de produtos excluídos",
		},
	)
	ValidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erros_validacao_total",
			Help: "Envios de formulário rejeitados por campos ausentes",
		},
		[]string{"form"},
	)
	ActivePreviews = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "previews_ativos",
			Help: "Previews de imagem ainda não revogados",
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessoes_ativas",
			Help: "Sessões com um gerenciador de produtos em memória",
		},
	)

	registerOnce sync.Once
)

func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			ProductsCreated,
			ProductsUpdated,
			ProductsDeleted,
			ValidationErrors,
			ActivePreviews,
			ActiveSessions,
		)
	})
}

func Start(port string, log *logrus.Logger) {
	Register(prometheus.DefaultRegisterer)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.WithError(err).Error("Servidor de métricas encerrado")
		}
	}()
}

// Recorder liga os eventos do gerenciador aos contadores acima.
type Recorder struct{}

func (Recorder) ProductCreated() { ProductsCreated.Inc() }
func (Recorder) ProductUpdated() { ProductsUpdated.Inc() }
func (Recorder) ProductDeleted() { ProductsDeleted.Inc() }
func (Recorder) ValidationFailed(form string) { ValidationErrors.WithLabelValues(form).Inc() }
