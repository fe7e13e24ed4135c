package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
  factory_contract: "0x00000000000000000000000000000000000000aa"
  private_key: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.Retention)
	assert.Equal(t, 10*time.Second, cfg.Notifications.Expiry)
	assert.Equal(t, PersistenceFile, cfg.Persistence.Driver)
	assert.Equal(t, 8, cfg.Ethereum.ReadConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Ethereum.ConfirmationTimeout)
}

func TestLoad_RequiresFactoryContract(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
  private_key: "abc"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ethereum.factory_contract is required")
}

func TestLoad_RejectsUnknownPersistenceDriver(t *testing.T) {
	path := writeConfig(t, `
persistence:
  driver: redis
ethereum:
  rpc_url: http://localhost:8545
  factory_contract: "0x00000000000000000000000000000000000000aa"
  private_key: "abc"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown persistence.driver")
}

func TestLoad_EncryptedKeyNeedsMasterKey(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
  factory_contract: "0x00000000000000000000000000000000000000aa"
  encrypted_private_key: "c2VhbGVk"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ethereum.key_master_key is required")
}

func TestLoad_RequiresSomeWalletKey(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
  factory_contract: "0x00000000000000000000000000000000000000aa"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ethereum.private_key or ethereum.encrypted_private_key is required")
}

func TestLoadDatabase_SkipsChainSettings(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  user: crowdfund
`)

	cfg, err := LoadDatabase(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)

	_, err = Load(path)
	require.Error(t, err)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
