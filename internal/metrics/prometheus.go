package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrfila_chat_duration_seconds",
			Help:    "Chat turn processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"transport"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrfila_chat_total",
			Help: "Total chat turns by confidence level",
		},
		[]string{"confidence_level"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mrfila_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrfila_escalations_total",
			Help: "Total low-confidence escalations by delivery outcome",
		},
		[]string{"outcome"},
	)

	LearnedAnswersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrfila_learned_answers_total",
			Help: "Total corrected answers fed back into the knowledge base",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrfila_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrfila_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PassagesRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mrfila_passages_retrieved",
			Help:    "Number of manual passages retrieved per question",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ReindexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mrfila_reindex_duration_seconds",
			Help:    "Knowledge base reindex duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrfila_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(EscalationsTotal)
	prometheus.MustRegister(LearnedAnswersTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PassagesRetrieved)
	prometheus.MustRegister(ReindexDuration)
	prometheus.MustRegister(LLMTokensUsed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
