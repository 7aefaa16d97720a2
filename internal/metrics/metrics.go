package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ScannerMetrics struct {
	ScansTotal          *prometheus.CounterVec
	ScanDuration        *prometheus.HistogramVec
	SubAnalysisFailures *prometheus.CounterVec
	ProviderFailures    *prometheus.CounterVec
	RiskScore           *prometheus.HistogramVec
	PersistenceFailures prometheus.Counter
	PatternMatches      *prometheus.CounterVec
	ThreatCategoryHits  *prometheus.CounterVec
}

func NewScannerMetrics() *ScannerMetrics {
	return &ScannerMetrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_scanner_scans_total",
			Help: "Total number of scans by chain and final status",
		}, []string{"chain", "status"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "token_scanner_scan_duration_seconds",
			Help:    "Wall time of a scan from request to signed result",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 45},
		}, []string{"chain"}),
		SubAnalysisFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_scanner_sub_analysis_failures_total",
			Help: "Total number of sub-analyses that degraded to their default",
		}, []string{"analysis"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_scanner_provider_failures_total",
			Help: "Total number of failed calls per external provider",
		}, []string{"provider"}),
		RiskScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "token_scanner_risk_score",
			Help:    "Distribution of risk scores of completed scans",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}, []string{"chain"}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_scanner_persistence_failures_total",
			Help: "Total number of completed scans that could not be stored",
		}),
		PatternMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_scanner_pattern_matches_total",
			Help: "Total number of times a bytecode pattern matched",
		}, []string{"pattern"}),
		ThreatCategoryHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_scanner_threat_categories_total",
			Help: "Total number of results tagged with each threat category",
		}, []string{"category"}),
	}
}

// Register adds every collector to r
func (m *ScannerMetrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ScansTotal, m.ScanDuration, m.SubAnalysisFailures, m.ProviderFailures,
		m.RiskScore, m.PersistenceFailures, m.PatternMatches, m.ThreatCategoryHits,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *ScannerMetrics) ObserveScan(chain, status string, took time.Duration) {
	m.ScansTotal.WithLabelValues(chain, status).Inc()
	m.ScanDuration.WithLabelValues(chain).Observe(took.Seconds())
}

func (m *ScannerMetrics) ObserveScore(chain string, score int) {
	m.RiskScore.WithLabelValues(chain).Observe(float64(score))
}

func (m *ScannerMetrics) SubAnalysisFailed(analysis string) {
	m.SubAnalysisFailures.WithLabelValues(analysis).Inc()
}

// ProviderFailed has the shape of provider.FailureHook
func (m *ScannerMetrics) ProviderFailed(provider string, _ error) {
	m.ProviderFailures.WithLabelValues(provider).Inc()
}

func (m *ScannerMetrics) PersistenceFailed() {
	m.PersistenceFailures.Inc()
}

func (m *ScannerMetrics) PatternsMatched(patterns []string) {
	for _, p := range patterns {
		m.PatternMatches.WithLabelValues(p).Inc()
	}
}

func (m *ScannerMetrics) CategoriesTagged(categories []string) {
	for _, c := range categories {
		m.ThreatCategoryHits.WithLabelValues(c).Inc()
	}
}
