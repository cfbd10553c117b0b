package routes

import (
	"devmind/datacollector/internal/api"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// APIPrefix is the mount point of the collector API. Download URLs handed out by the
// record service are built from it.
const APIPrefix = "/api/v1/collector"

// RegisterAPIRoutes registers the collector API
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies, metricsReg *metrics.MetricsRegistry, opts RouterOptions) {
	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateBurst)

	r.Route(APIPrefix, func(v1 chi.Router) {
		v1.Use(middleware.InFlightMiddleware(metricsReg, "collector"))
		v1.Use(limiter.Middleware)

		// presigned links authenticate through the token itself
		v1.Get("/files/{token}", api.SignedDownloadHandler(deps))

		v1.Group(func(owner chi.Router) {
			owner.Use(middleware.AuthMiddleware(opts.JWTSecret))

			owner.Get("/configs", api.ListConfigsHandler(deps))
			owner.Post("/configs", api.CreateConfigHandler(deps))
			owner.Post("/configs/validate-config", api.ValidateConfigHandler(deps))
			owner.Post("/configs/fetch-projects", api.FetchProjectsHandler(deps))
			owner.Get("/configs/{config_uuid}", api.GetConfigHandler(deps))
			owner.Put("/configs/{config_uuid}", api.UpdateConfigHandler(deps))
			owner.Delete("/configs/{config_uuid}", api.DeleteConfigHandler(deps))
			owner.Post("/configs/{config_uuid}/validate-config", api.ValidateStoredConfigHandler(deps))
			owner.Post("/configs/{config_uuid}/collect", api.TriggerCollectHandler(deps))
			owner.Post("/configs/{config_uuid}/validate", api.TriggerValidateHandler(deps))

			owner.Get("/records", api.ListRecordsHandler(deps))
			owner.Get("/records/{record_uuid}", api.GetRecordHandler(deps))
			owner.Get("/records/{record_uuid}/attachments/{attachment_uuid}/download", api.DownloadAttachmentHandler(deps))
			owner.Post("/records/{record_uuid}/attachments/{attachment_uuid}/link", api.CreateDownloadLinkHandler(deps))

			owner.Get("/stats", api.RecordStatsHandler(deps))

			owner.Get("/jobs", api.ListJobsHandler(deps))
			owner.Get("/jobs/{task_id}", api.GetJobHandler(deps))
		})
	})
}
