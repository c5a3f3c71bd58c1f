// Package secrets resolves runtime secrets. When Vault is configured the
// CSRF signing secret is read from its KV store at startup instead of from
// local configuration.
package secrets

import (
	"context"

	vault "github.com/hashicorp/vault/api"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

// VaultClient reads secrets from HashiCorp Vault.
type VaultClient struct {
	client    *vault.Client
	mountPath string
	logger    logger.Logger
}

// NewVaultClient creates and configures a Vault client.
func NewVaultClient(cfg *config.VaultConfig, log logger.Logger) (*VaultClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.ErrInvalidConfig.WithError(err)
	}
	client.SetToken(cfg.Token)

	return &VaultClient{
		client:    client,
		mountPath: cfg.MountPath,
		logger:    log.WithComponent("Vault"),
	}, nil
}

// SigningSecret reads the CSRF signing secret stored at secretPath under the
// key "value".
func (v *VaultClient) SigningSecret(ctx context.Context, secretPath string) (string, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, secretPath)
	if err != nil {
		return "", errors.ErrInvalidConfig.WithError(err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrInvalidConfig.WithMessagef("no secret at %q", secretPath)
	}

	value, ok := secret.Data["value"].(string)
	if !ok || value == "" {
		return "", errors.ErrInvalidConfig.WithMessagef("secret at %q has no string field %q", secretPath, "value")
	}

	v.logger.Info(ctx, "CSRF signing secret loaded from Vault", logger.Fields{
		"path": secretPath,
	})
	return value, nil
}
