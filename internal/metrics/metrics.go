// Package metrics holds the Prometheus collectors for the RAG pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docqa"

var (
	// IngestTotal counts ingestion attempts.
	// Labels: result (success, extract_error, error)
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of document ingestion attempts",
		},
		[]string{"result"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of document ingestion in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// OCRPages counts pages whose text came from OCR.
	OCRPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "ocr_pages_total",
			Help:      "Total number of pages routed through OCR",
		},
	)

	IndexChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks currently held by the vector index",
		},
	)

	// IndexOperations counts index mutations and queries.
	// Labels: op (add, query, remove), result (success, error)
	IndexOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Total number of vector index operations",
		},
		[]string{"op", "result"},
	)

	// AnswersTotal counts composed answers.
	// Labels: intent (full_document, question_extraction, qa), outcome (llm, fixed, error)
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answer",
			Name:      "total",
			Help:      "Total number of answers by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	DeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delete",
			Name:      "documents_total",
			Help:      "Total number of document deletions by whether anything was removed",
		},
		[]string{"removed"},
	)
)

// Result maps an error onto the success/error label pair.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
