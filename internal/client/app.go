package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/service"
	"github.com/nmalikova/caseline/internal/store"
	"github.com/nmalikova/caseline/models"
)

// sessionRoleKey is the settings key the last known role is persisted under,
// so an offline restart still picks the right preload set.
const sessionRoleKey = "role"

// shutdownDrainTimeout bounds the final queue flush on shutdown.
const shutdownDrainTimeout = 30 * time.Second

// App wires the engine's services into a single process lifecycle.
type App struct {
	services *service.Services
	storages *store.Storages
	cfg      *config.ClientConfig
	logger   *logger.Logger
}

// NewApp creates the client application over already-wired services.
func NewApp(services *service.Services, storages *store.Storages, cfg *config.ClientConfig, logger *logger.Logger) (*App, error) {
	if services == nil || storages == nil || cfg == nil {
		return nil, errors.New("client app: missing dependencies")
	}

	return &App{
		services: services,
		storages: storages,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run implements [Client]. It preloads the session's entity sets, starts the
// background synchronizer, and blocks until ctx is cancelled. On shutdown the
// mutation queue gets one last bounded drain so short offline edits are not
// left behind when connectivity is back.
func (a *App) Run(ctx context.Context) error {
	ctx = a.logger.WithContext(ctx)

	role := a.resolveRole(ctx)

	report := a.services.Preloader.Preload(ctx, role)
	for entity, loadErr := range report.Failed {
		a.logger.Warn().Err(loadErr).
			Str("func", "*App.Run").
			Str("entity", entity).
			Msg("session preload incomplete for entity")
	}

	a.services.Scheduler.Start(ctx)
	defer a.services.Scheduler.Stop()

	<-ctx.Done()

	a.finalDrain(ctx)

	return nil
}

// resolveRole returns the configured role, falling back to the last
// persisted one. The resolved role is written back so the next start works
// offline.
func (a *App) resolveRole(ctx context.Context) string {
	role := a.cfg.Session.Role
	if role == "" {
		if setting, err := a.storages.Settings.Get(ctx, sessionRoleKey); err == nil {
			role = setting.Value
		}
	}
	if role == "" {
		return ""
	}

	if err := a.storages.Settings.Set(ctx, models.Setting{
		Key:      sessionRoleKey,
		Value:    role,
		Category: models.SettingCategorySession,
	}); err != nil {
		a.logger.Warn().Err(err).
			Str("func", "*App.resolveRole").
			Msg("failed to persist session role")
	}

	return role
}

func (a *App) finalDrain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownDrainTimeout)
	defer cancel()

	summary, err := a.services.Syncer.Drain(drainCtx)
	switch {
	case err == nil:
		if !summary.Empty() {
			a.logger.Info().
				Int("applied", summary.Applied).
				Int("failed", summary.Failed).
				Msg("queue flushed on shutdown")
		}
	case errors.Is(err, service.ErrSyncInFlight), errors.Is(err, gateway.ErrOffline):
		// nothing to do, the queue survives the restart
	default:
		a.logger.Warn().Err(fmt.Errorf("shutdown drain: %w", err)).Msg("final drain failed")
	}
}
