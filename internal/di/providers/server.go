package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/vieuxgrimoire/grimoire-server/internal/api"
	"github.com/vieuxgrimoire/grimoire-server/internal/config"
	"github.com/vieuxgrimoire/grimoire-server/internal/logger"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
	"github.com/vieuxgrimoire/grimoire-server/internal/service"
)

// HTTPServerHandle wraps the API server with Shutdownable.
type HTTPServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	authService := do.MustInvoke[*service.AuthService](i)
	bookService := do.MustInvoke[*service.BookService](i)
	covers := do.MustInvoke[*images.Storage](i)

	srv := api.NewServer(cfg, log.Logger, authService, bookService, covers)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "port", cfg.Server.Port, "public_url", cfg.Server.PublicURL)

	return &HTTPServerHandle{Server: srv}, nil
}
