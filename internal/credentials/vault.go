package credentials

import (
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"

	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

const (
	vaultAddrEnv  = "INGOT_VAULT_ADDR"
	vaultTokenEnv = "INGOT_VAULT_TOKEN"
	vaultMount    = "ingot"
)

// vaultCredentials returns the Vault-sourced credential map for a platform,
// loading the whole mount on first call. A missing or unreachable Vault
// degrades to an empty map; env and config still apply.
func (m *Manager) vaultCredentials(platform ticket.Platform) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vault == nil {
		m.vault = loadVault(m.log)
	}
	return m.vault[platform]
}

func loadVault(log logger.Logger) map[ticket.Platform]map[string]string {
	out := make(map[ticket.Platform]map[string]string)
	addr := os.Getenv(vaultAddrEnv)
	if addr == "" {
		return out
	}
	token := os.Getenv(vaultTokenEnv)
	if token == "" {
		log.Warn("vault address set but no token, skipping vault credentials")
		return out
	}

	cfg := vault.DefaultConfig()
	cfg.Address = addr
	client, err := vault.NewClient(cfg)
	if err != nil {
		log.Warn("vault client init failed", logger.Err(err))
		return out
	}
	client.SetToken(token)

	for _, platform := range ticket.AllPlatforms() {
		secret, err := client.Logical().Read(
			fmt.Sprintf("%s/data/platforms/%s", vaultMount, platform))
		if err != nil {
			log.Warn("vault read failed",
				logger.String("platform", string(platform)), logger.Err(err))
			continue
		}
		if secret == nil || secret.Data == nil {
			continue
		}
		// KV2 nests the payload under "data".
		data, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			continue
		}
		creds := make(map[string]string, len(data))
		for k, v := range data {
			if s, ok := v.(string); ok && s != "" {
				creds[k] = s
			}
		}
		if len(creds) > 0 {
			out[platform] = creds
			log.Debug("loaded vault credentials",
				logger.String("platform", string(platform)),
				logger.Int("keys", len(creds)))
		}
	}
	return out
}
