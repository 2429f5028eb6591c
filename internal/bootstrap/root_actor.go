package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/pkg/apikey"
	"go.uber.org/zap"
)

const RootIdentifier = "root"

type rootKeyStore interface {
	UpsertKey(ctx context.Context, identifier, lookup, phc string) (*model.User, error)
}

// EnsureRootActor creates or re-keys the root actor from root.api_bearer_token
// when the service starts. Nothing happens unless both token and pepper are set.
func EnsureRootActor(ctx context.Context, users rootKeyStore, cfg *config.Config, log *zap.Logger) error {
	secret := strings.TrimPrefix(cfg.Root.ApiBearerToken, cfg.Root.BearerTokenPrefix)
	pepper := cfg.Root.SecretPepper
	if secret == "" || pepper == "" {
		return nil
	}

	phc, err := apikey.Hash(secret, pepper)
	if err != nil {
		return fmt.Errorf("hash root key: %w", err)
	}
	u, err := users.UpsertKey(ctx, RootIdentifier, apikey.Lookup(pepper, secret), phc)
	if err != nil {
		return fmt.Errorf("upsert root actor: %w", err)
	}
	log.Sugar().Infow("root actor ready", "actor", u.ID)
	return nil
}
