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

// HierarchyMetrics is returned by GET /api/metrics/hierarchy.
type HierarchyMetrics struct {
	Requests     map[string]float64 `json:"requests"`
	LinksAdded   map[string]float64 `json:"linksAdded"`
	LinksRemoved map[string]float64 `json:"linksRemoved"`
	StubsCreated float64            `json:"stubsCreated"`
	ReadRepairs  float64            `json:"readRepairs"`
	StoreErrors  map[string]float64 `json:"storeErrors"`
	CacheHitRate float64            `json:"cacheHitRate"`
	Period       string             `json:"period"`
}
