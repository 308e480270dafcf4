package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// InsightsMetrics is returned by GET /v1/metrics/insights.
type InsightsMetrics struct {
	TotalRequests        int64   `json:"totalRequests"`
	ErrorRate            float64 `json:"errorRate"`
	SnapshotCacheHitRate float64 `json:"snapshotCacheHitRate"`
	MemoHitRate          float64 `json:"memoHitRate"`
	SourceErrors         int64   `json:"sourceErrors"`
	TransactionsSeen     int64   `json:"transactionsSeen"`
	Period               string  `json:"period"`
}
