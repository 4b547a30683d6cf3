package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/vieuxgrimoire/grimoire-server/internal/config"
	"github.com/vieuxgrimoire/grimoire-server/internal/logger"
	"github.com/vieuxgrimoire/grimoire-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Storage.DataPath, "db")
	s, err := store.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	return &StoreHandle{Store: s}, nil
}
