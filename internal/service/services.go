package service

import (
	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/store"
)

// Services groups the engine's service layer.
type Services struct {
	Facade    Facade
	Syncer    Syncer
	Conflicts ConflictService
	Scheduler Scheduler
	Preloader Preloader
}

// NewServices wires the service layer over the given storages and gateway.
func NewServices(storages *store.Storages, gw gateway.Gateway, cfg *config.ClientConfig, logger *logger.Logger) *Services {
	syncer := NewSyncer(storages, gw, logger)

	return &Services{
		Facade:    NewFacade(storages, gw, logger),
		Syncer:    syncer,
		Conflicts: NewConflictService(storages, gw, logger),
		Scheduler: NewScheduler(syncer, storages, gw, cfg.Workers, logger),
		Preloader: NewPreloader(storages, gw, cfg.Preload, logger),
	}
}
