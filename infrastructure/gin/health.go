package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus is the outcome of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckResult is one dependency check outcome.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker performs one dependency check.
type HealthChecker func() CheckResult

// HealthOptions configures the /health endpoints.
type HealthOptions struct {
	ServiceName    string
	ServiceVersion string
	Checks         map[string]HealthChecker
}

// PingChecker adapts a ping function. failStatus is reported when ping fails,
// so optional dependencies can degrade instead of failing the service.
func PingChecker(ping func() error, failStatus HealthStatus) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := ping()
		latency := time.Since(start).String()
		if err != nil {
			return CheckResult{Status: failStatus, Message: err.Error(), Latency: latency}
		}
		return CheckResult{Status: HealthStatusHealthy, Latency: latency}
	}
}

// RegisterHealthRoutes adds /health (with checks) and /health/live.
func RegisterHealthRoutes(router *gin.Engine, opts HealthOptions) {
	started := time.Now()

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": HealthStatusHealthy})
	})

	router.GET("/health", func(c *gin.Context) {
		overall := HealthStatusHealthy
		results := make(map[string]CheckResult, len(opts.Checks))

		for name, check := range opts.Checks {
			res := check()
			results[name] = res
			overall = worse(overall, res.Status)
		}

		status := http.StatusOK
		if overall == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":  overall,
			"service": opts.ServiceName,
			"version": opts.ServiceVersion,
			"uptime":  time.Since(started).Round(time.Second).String(),
			"checks":  results,
		})
	})
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
