package api

import (
	"devmind/datacollector/internal/services"

	"github.com/jmoiron/sqlx"
)

type Services struct {
	Configs *services.CollectorConfigService
	Jobs    *services.JobService
	Records *services.RecordService
	Stats   *services.StatsService
}

type Dependencies struct {
	DB       *sqlx.DB
	Services *Services
}
