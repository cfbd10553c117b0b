package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"devmind/datacollector/internal/models/entities"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe checks one dependency. A nil error means healthy.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthCheckHandler handles GET /healthCheck. Any failing probe turns the
// report "down" and the status code 503.
func HealthCheckHandler(probes []HealthProbe, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		report := entities.HealthReport{
			Status:     "ok",
			Components: make(map[string]entities.ComponentHealth, len(probes)),
			UpSince:    upSince,
			Uptime:     time.Since(upSince).Round(time.Second).String(),
		}

		for _, probe := range probes {
			started := time.Now()
			err := probe.Check(ctx)
			component := entities.ComponentHealth{
				Status:    "ok",
				LatencyMS: time.Since(started).Milliseconds(),
			}
			if err != nil {
				component.Status = "down"
				component.Details = err.Error()
				report.Status = "down"
			}
			report.Components[probe.Name] = component
		}

		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
