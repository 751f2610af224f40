package observability

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// HealthChecker is implemented by any dependency whose reachability should
// be reflected in the /health response (vector store, KV store).
type HealthChecker interface {
	Name() string
	Check() error
}

// HealthHandler serves aggregate process + dependency health, adapted from
// the teacher's health.go response shape (status/uptime/system/checks)
// with the provider registry replaced by a small list of HealthChecker
// dependencies relevant to this service.
type HealthHandler struct {
	checkers  []HealthChecker
	startTime time.Time
	version   string
}

// NewHealthHandler builds a HealthHandler over the given dependency checks.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, startTime: time.Now(), version: version}
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	System    systemInfo             `json:"system"`
	Checks    map[string]checkResult `json:"checks"`
}

type systemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ServeHTTP runs every registered check and reports overall status: healthy
// if all pass, degraded if any fail.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	checks := make(map[string]checkResult, len(h.checkers))
	status := "healthy"
	for _, c := range h.checkers {
		if err := c.Check(); err != nil {
			checks[c.Name()] = checkResult{Status: "fail", Message: err.Error()}
			status = "degraded"
		} else {
			checks[c.Name()] = checkResult{Status: "pass"}
		}
	}

	resp := healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
		Version:   h.version,
		System: systemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAllocBytes: memStats.Alloc,
		},
		Checks: checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
