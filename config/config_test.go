package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Owner = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	cfg.BaseAsset = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	cfg.CounterAsset = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	cfg.LenderAddress = "0x610178dA211FEF7D417bC0e6FeD39F05609AD788"
	cfg.Pools = []PoolConfig{
		{Address: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", FeeBasisPoints: 30},
		{Address: "0x0165878A594ca255338adfa4d48449f69242Eb8F", FeeBasisPoints: 30},
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Owner = "not-an-address"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ExecutorAddress = "0x123"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresTwoPools(t *testing.T) {
	cfg := validConfig()
	cfg.Pools = cfg.Pools[:1]
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadAmounts(t *testing.T) {
	cfg := validConfig()
	cfg.LoanAmount = "0"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.LoanAmount = "ten thousand"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.FlashLoanFeeBasisPoints = 10000
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.BasePerNative = "-1/2"
	assert.Error(t, cfg.Validate())
}

func TestAccessors(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, cfg.Owner, cfg.OwnerAddress().Hex())
	assert.Equal(t, big.NewInt(10000), cfg.LoanAmountUnits())
	assert.Equal(t, big.NewRat(1, 1), cfg.BaseConversionRate())

	_, ok := cfg.ExecutorContractAddress()
	assert.False(t, ok)

	cfg.ExecutorAddress = "0x0B306BF915C4d645ff596e518fAf3F9669b97016"
	addr, ok := cfg.ExecutorContractAddress()
	assert.True(t, ok)
	assert.Equal(t, cfg.ExecutorAddress, addr.Hex())
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	data := `{
		"rpc_endpoint": "http://localhost:8545",
		"owner": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"base_asset": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"counter_asset": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"lender_address": "0x610178dA211FEF7D417bC0e6FeD39F05609AD788",
		"pools": [
			{"address": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", "fee_basis_points": 30},
			{"address": "0x0165878A594ca255338adfa4d48449f69242Eb8F", "fee_basis_points": 30}
		],
		"loan_amount": "25000",
		"min_spread_percent": 1.5
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(25000), cfg.LoanAmountUnits())
	assert.Equal(t, 1.5, cfg.MinSpreadPercent)
	// Unset fields keep their defaults.
	assert.Equal(t, uint16(10), cfg.FlashLoanFeeBasisPoints)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := `
rpc_endpoint: http://localhost:8545
owner: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
base_asset: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
counter_asset: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
lender_address: "0x610178dA211FEF7D417bC0e6FeD39F05609AD788"
pools:
  - address: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
    fee_basis_points: 30
  - address: "0x0165878A594ca255338adfa4d48449f69242Eb8F"
    fee_basis_points: 25
loan_amount: "10000"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Pools, 2)
	assert.Equal(t, uint16(25), cfg.Pools[1].FeeBasisPoints)
}

func TestLoadConfigPathFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	data := `{
		"rpc_endpoint": "http://localhost:8545",
		"owner": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"base_asset": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"counter_asset": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"lender_address": "0x610178dA211FEF7D417bC0e6FeD39F05609AD788",
		"pools": [
			{"address": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", "fee_basis_points": 30},
			{"address": "0x0165878A594ca255338adfa4d48449f69242Eb8F", "fee_basis_points": 30}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Len(t, cfg.Pools, 2)
}

func TestLoadConfigRPCEndpointFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	data := `{
		"rpc_endpoint": "http://localhost:8545",
		"owner": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"base_asset": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"counter_asset": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"lender_address": "0x610178dA211FEF7D417bC0e6FeD39F05609AD788",
		"pools": [
			{"address": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", "fee_basis_points": 30},
			{"address": "0x0165878A594ca255338adfa4d48449f69242Eb8F", "fee_basis_points": 30}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv(EnvRPCEndpoint, "ws://node.internal:8546")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://node.internal:8546", cfg.RPCEndpoint)
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rpc_endpoint": ""}`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("ARBENGINE_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvWithDefault("ARBENGINE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvWithDefault("ARBENGINE_TEST_MISSING", "fallback"))
}

func TestGetRequiredEnv(t *testing.T) {
	t.Setenv("ARBENGINE_TEST_REQUIRED", "value")
	value, err := GetRequiredEnv("ARBENGINE_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	_, err = GetRequiredEnv("ARBENGINE_TEST_ABSENT")
	assert.Error(t, err)
}
