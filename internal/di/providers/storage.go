package providers

import (
	"github.com/samber/do/v2"

	"github.com/vieuxgrimoire/grimoire-server/internal/config"
	"github.com/vieuxgrimoire/grimoire-server/internal/logger"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
)

// ProvideImageStorage provides the cover image filesystem storage.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return images.NewStorage(cfg.Storage.DataPath)
}

// ProvideImageProcessor provides the cover image processor.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	storage := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)
	return images.NewProcessor(storage, log.Logger), nil
}
