package engine

import (
	"github.com/rs/zerolog"

	"github.com/tallerpro/checkup/internal/core/catalog"
	"github.com/tallerpro/checkup/internal/core/config"
	"github.com/tallerpro/checkup/internal/core/eventbus"
	"github.com/tallerpro/checkup/internal/data/db"
	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/remote"
)

const defaultBusBuffer = 64

// App bundles the wired application graph for the command layer.
type App struct {
	Config     *config.Config
	DB         *db.DB
	Store      *stores.InstanceStore
	Remote     remote.Client
	Catalog    *catalog.Catalog
	Bus        *eventbus.EventBus
	Engine     *Service
	Reconciler *Reconciler
}

// NewApp wires the engine onto an open database and remote client. The bus
// is created but not started; the caller owns its dispatch goroutine.
func NewApp(cfg *config.Config, database *db.DB, remoteClient remote.Client, log zerolog.Logger) *App {
	store := stores.NewInstanceStore(database)
	cat := catalog.New(remoteClient)
	bus := eventbus.New(defaultBusBuffer)

	svc := NewService(store, remoteClient, cat, bus, cfg, log)
	rec := NewReconciler(svc, log)

	return &App{
		Config:     cfg,
		DB:         database,
		Store:      store,
		Remote:     remoteClient,
		Catalog:    cat,
		Bus:        bus,
		Engine:     svc,
		Reconciler: rec,
	}
}
