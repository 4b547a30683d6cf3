package providers

import (
	"github.com/samber/do/v2"

	"github.com/vieuxgrimoire/grimoire-server/internal/auth"
	"github.com/vieuxgrimoire/grimoire-server/internal/config"
	"github.com/vieuxgrimoire/grimoire-server/internal/logger"
)

// AuthKey is the hex-encoded symmetric key for access tokens.
type AuthKey string

// ProvideAuthKey resolves the token key: an explicitly configured key
// wins, otherwise one is loaded or generated under the data path so
// tokens survive restarts.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.TokenKey != "" {
		return AuthKey(cfg.Auth.TokenKey), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.Storage.DataPath)
	if err != nil {
		return "", err
	}

	log.Info("Authentication key loaded", "token_duration", cfg.Auth.TokenDuration)
	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(string(key), cfg.Auth.TokenDuration)
}
