package app

import (
	"context"
	"fmt"

	"github.com/nexahq/nexa-backend/internal/app/services/calls"
	"github.com/nexahq/nexa-backend/internal/app/services/insights"
	"github.com/nexahq/nexa-backend/internal/app/services/users"
	"github.com/nexahq/nexa-backend/internal/app/storage"
	"github.com/nexahq/nexa-backend/internal/app/storage/memory"
	"github.com/nexahq/nexa-backend/internal/app/system"
	"github.com/nexahq/nexa-backend/internal/cache"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	CallLogs storage.CallLogStore
}

// Options configures application construction.
type Options struct {
	Stores    Stores
	Extractor insights.Extractor
	Lister    calls.CallLister
	Cache     cache.Cache

	// Workers bounds concurrent transcript processing during syncs.
	Workers int

	// SyncSchedule is a cron expression for background call-log syncs.
	// Empty disables scheduling; manual syncs stay available.
	SyncSchedule string

	Log *logger.Logger
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users  *users.Service
	Calls  *calls.Service
	Syncer *calls.Syncer
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.CallLogs == nil {
		stores.CallLogs = mem
	}

	extractor := opts.Extractor
	if extractor == nil {
		return nil, fmt.Errorf("transcript extractor is required")
	}

	manager := system.NewManager()

	usersSvc := users.New(stores.Users, opts.Cache, log)
	callsSvc := calls.New(stores.Users, stores.CallLogs, extractor, log)
	callsSvc.OnProcessed(func(ctx context.Context, phone string) {
		usersSvc.Invalidate(ctx, phone)
	})

	var syncer *calls.Syncer
	if opts.Lister != nil {
		syncer = calls.NewSyncer(opts.Lister, callsSvc, opts.Workers, log)
		if opts.SyncSchedule != "" {
			runner := calls.NewSyncRunner(syncer, opts.SyncSchedule, log)
			if err := manager.Register(runner); err != nil {
				return nil, fmt.Errorf("register %s: %w", runner.Name(), err)
			}
		}
	} else if opts.SyncSchedule != "" {
		log.Warn("sync schedule configured without a call lister; scheduling disabled")
	}

	return &Application{
		manager: manager,
		log:     log,
		Users:   usersSvc,
		Calls:   callsSvc,
		Syncer:  syncer,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
