package entities

import "time"

// ComponentHealth is the probe result of one backing dependency
type ComponentHealth struct {
	Status    string `json:"status"`
	Details   string `json:"details,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type HealthReport struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	UpSince    time.Time                  `json:"up_since"`
	Uptime     string                     `json:"uptime"`
}
