package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost"},
		Chains: []ChainConfig{
			{Name: "base", RPCURL: "https://rpc.base", ContractAddress: "0x1", IsMain: true},
			{Name: "arbitrum", RPCURL: "https://rpc.arb", ContractAddress: "0x2"},
		},
		Relay: RelayConfig{GasReservePercent: 35},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRequiresDatabaseHost(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	assert.ErrorContains(t, Validate(cfg), "database.host")
}

func TestValidateRequiresChains(t *testing.T) {
	cfg := validConfig()
	cfg.Chains = nil
	assert.ErrorContains(t, Validate(cfg), "at least one chain")
}

func TestValidateRejectsDuplicateChainNames(t *testing.T) {
	cfg := validConfig()
	cfg.Chains[1].Name = "base"
	assert.ErrorContains(t, Validate(cfg), "duplicate chain name")
}

func TestValidateRequiresExactlyOneMainChain(t *testing.T) {
	cfg := validConfig()
	cfg.Chains[0].IsMain = false
	assert.ErrorContains(t, Validate(cfg), "exactly one chain")

	cfg = validConfig()
	cfg.Chains[1].IsMain = true
	assert.ErrorContains(t, Validate(cfg), "exactly one chain")
}

func TestValidateDefaultsNativeDecimals(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, int32(18), cfg.Chains[0].NativeDecimals)
}

func TestValidateBoundsGasReservePercent(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.GasReservePercent = 100
	assert.ErrorContains(t, Validate(cfg), "gas_reserve_percent")
}

func TestMainChain(t *testing.T) {
	cfg := validConfig()
	main := cfg.MainChain()
	require.NotNil(t, main)
	assert.Equal(t, "base", main.Name)
}

func TestGetConnectionString(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "relayer",
		Password: "secret",
		Database: "crowdfund",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=relayer password=secret dbname=crowdfund sslmode=disable",
		dbCfg.GetConnectionString())
}

func TestLoadAppliesDefaults(t *testing.T) {
	configYAML := `
database:
  host: localhost
  user: relayer
  password: secret
  database: crowdfund
chains:
  - name: base
    rpc_url: https://rpc.base
    chain_id: 8453
    contract_address: "0x1"
    is_main: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, uint64(50000), cfg.Indexer.RecentHistory)
	assert.Equal(t, uint64(500000), cfg.Indexer.MaxAcceptableGap)
	assert.Equal(t, uint64(100), cfg.Indexer.RealtimeThreshold)
	assert.Equal(t, uint64(50), cfg.Indexer.RealtimeBatchSize)
	assert.Equal(t, uint64(2000), cfg.Indexer.CatchupBatchSize)
	assert.Equal(t, int64(35), cfg.Relay.GasReservePercent)
	assert.Equal(t, int64(20), cfg.Relay.FeeBoostPercent)
	assert.Equal(t, 3, cfg.Relay.MaxReplacements)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int32(18), cfg.Chains[0].NativeDecimals)
}
