package routes

import (
	"context"
	"net/http"
	"time"

	"devmind/datacollector/internal/api"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/middleware"
	"devmind/datacollector/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// RouterOptions carries what the router needs beyond the handler dependencies
type RouterOptions struct {
	JWTSecret    []byte
	Metrics      *metrics.MetricsRegistry
	Gatherer     prometheus.Gatherer
	HealthDB     *sqlx.DB
	HealthRedis  *redis.Client // nil without Redis
	HealthBlobs  storage.BlobStore
	UpSince      time.Time
	RateLimitRPS float64
	RateBurst    int
}

func RegisterRoutes(deps *api.Dependencies, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	metricsReg := opts.Metrics
	if metricsReg == nil {
		metricsReg = metrics.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthCheck", api.HealthCheckHandler(healthProbes(opts), opts.UpSince))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	RegisterAPIRoutes(r, deps, metricsReg, opts)

	logging.Info("Router initialized")
	return r
}

func healthProbes(opts RouterOptions) []api.HealthProbe {
	var probes []api.HealthProbe
	if opts.HealthDB != nil {
		probes = append(probes, api.HealthProbe{Name: "database", Check: opts.HealthDB.PingContext})
	}
	if opts.HealthRedis != nil {
		probes = append(probes, api.HealthProbe{Name: "redis", Check: func(ctx context.Context) error {
			return opts.HealthRedis.Ping(ctx).Err()
		}})
	}
	if opts.HealthBlobs != nil {
		probes = append(probes, api.HealthProbe{Name: "storage", Check: func(ctx context.Context) error {
			_, err := opts.HealthBlobs.Exists(ctx, storage.AttachmentKey("health", "probe"))
			return err
		}})
	}
	return probes
}
