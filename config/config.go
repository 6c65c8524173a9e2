package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

// PoolConfig identifies one constant-product venue.
type PoolConfig struct {
	Address        string `json:"address" yaml:"address"`
	FeeBasisPoints uint16 `json:"fee_basis_points" yaml:"fee_basis_points"`
}

// RateLimitConfig bounds the snapshot read path.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size"`
}

// Config is the engine configuration. Contract addresses are injected here;
// nothing in the engine hardcodes a deployment. Addresses and big amounts
// are kept as strings so both JSON and YAML files decode them.
type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id" yaml:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint" yaml:"rpc_endpoint"`

	// Deployment addresses
	Owner           string       `json:"owner" yaml:"owner"`
	BaseAsset       string       `json:"base_asset" yaml:"base_asset"`
	CounterAsset    string       `json:"counter_asset" yaml:"counter_asset"`
	LenderAddress   string       `json:"lender_address" yaml:"lender_address"`
	ExecutorAddress string       `json:"executor_address,omitempty" yaml:"executor_address,omitempty"`
	Pools           []PoolConfig `json:"pools" yaml:"pools"`

	// Decision parameters
	LoanAmount              string  `json:"loan_amount" yaml:"loan_amount"`
	FlashLoanFeeBasisPoints uint16  `json:"flash_loan_fee_basis_points" yaml:"flash_loan_fee_basis_points"`
	MinSpreadPercent        float64 `json:"min_spread_percent" yaml:"min_spread_percent"`

	// Gas accounting
	EstimatedGasUnits uint64 `json:"estimated_gas_units" yaml:"estimated_gas_units"`
	BasePerNative     string `json:"base_per_native" yaml:"base_per_native"`

	// Read path
	MaxSnapshotStaleness time.Duration   `json:"max_snapshot_staleness" yaml:"max_snapshot_staleness"`
	StepTimeout          time.Duration   `json:"step_timeout" yaml:"step_timeout"`
	CycleInterval        time.Duration   `json:"cycle_interval" yaml:"cycle_interval"`
	ReadRateLimit        RateLimitConfig `json:"read_rate_limit" yaml:"read_rate_limit"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint" yaml:"prometheus_endpoint"`

	// Internal components
	Logger *zap.Logger `json:"-" yaml:"-"`
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.RPCEndpoint == "" {
		errs = append(errs, "rpc_endpoint must be specified")
	}
	for name, addr := range map[string]string{
		"owner":          c.Owner,
		"base_asset":     c.BaseAsset,
		"counter_asset":  c.CounterAsset,
		"lender_address": c.LenderAddress,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("%s is not a valid address: %q", name, addr))
		}
	}
	if c.ExecutorAddress != "" && !common.IsHexAddress(c.ExecutorAddress) {
		errs = append(errs, fmt.Sprintf("executor_address is not a valid address: %q", c.ExecutorAddress))
	}

	if len(c.Pools) < 2 {
		errs = append(errs, "at least two pools must be configured")
	}
	for i, pool := range c.Pools {
		if !common.IsHexAddress(pool.Address) {
			errs = append(errs, fmt.Sprintf("pools[%d].address is not a valid address: %q", i, pool.Address))
		}
		if pool.FeeBasisPoints >= 10000 {
			errs = append(errs, fmt.Sprintf("pools[%d].fee_basis_points must be below 10000", i))
		}
	}

	if amount, ok := new(big.Int).SetString(c.LoanAmount, 10); !ok || amount.Sign() <= 0 {
		errs = append(errs, fmt.Sprintf("loan_amount must be a positive integer: %q", c.LoanAmount))
	}
	if c.FlashLoanFeeBasisPoints >= 10000 {
		errs = append(errs, "flash_loan_fee_basis_points must be below 10000")
	}
	if c.MinSpreadPercent < 0 {
		errs = append(errs, "min_spread_percent must not be negative")
	}
	if c.EstimatedGasUnits == 0 {
		errs = append(errs, "estimated_gas_units must be positive")
	}
	if rate, ok := new(big.Rat).SetString(c.BasePerNative); !ok || rate.Sign() <= 0 {
		errs = append(errs, fmt.Sprintf("base_per_native must be a positive rational: %q", c.BasePerNative))
	}
	if c.ReadRateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, "read_rate_limit.requests_per_second must be positive")
	}
	if c.ReadRateLimit.BurstSize <= 0 {
		errs = append(errs, "read_rate_limit.burst_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// OwnerAddress returns the operator's account address.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// BaseAssetAddress returns the loaned asset's contract address.
func (c *Config) BaseAssetAddress() common.Address {
	return common.HexToAddress(c.BaseAsset)
}

// CounterAssetAddress returns the intermediate asset's contract address.
func (c *Config) CounterAssetAddress() common.Address {
	return common.HexToAddress(c.CounterAsset)
}

// LenderContractAddress returns the flash-loan lender's contract address.
func (c *Config) LenderContractAddress() common.Address {
	return common.HexToAddress(c.LenderAddress)
}

// ExecutorContractAddress returns the atomic executor's contract address and
// whether one is configured.
func (c *Config) ExecutorContractAddress() (common.Address, bool) {
	if c.ExecutorAddress == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.ExecutorAddress), true
}

// LoanAmountUnits returns the loan principal in base-asset units.
func (c *Config) LoanAmountUnits() *big.Int {
	amount, _ := new(big.Int).SetString(c.LoanAmount, 10)
	return amount
}

// BaseConversionRate returns the base-asset-units-per-native-unit rate used
// to express gas cost in the base asset.
func (c *Config) BaseConversionRate() *big.Rat {
	rate, _ := new(big.Rat).SetString(c.BasePerNative)
	return rate
}

// LoadConfig reads and validates a configuration file. The format follows
// the file extension: .yaml/.yml or .json. An empty cfgFile falls back to
// ARBENGINE_CONFIG and then $HOME/.arbengine.json; ARBENGINE_RPC_ENDPOINT
// overrides the file's endpoint.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		cfgFile = os.Getenv(EnvConfigFile)
	}
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".arbengine.json")
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(cfgFile)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if endpoint := os.Getenv(EnvRPCEndpoint); endpoint != "" {
		config.RPCEndpoint = endpoint
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	config.Logger = logger

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration as indented JSON.
func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfgFile = filepath.Join(home, ".arbengine.json")
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

// DefaultConfig returns the engine defaults. Deployment addresses have no
// defaults and must come from the config file.
func DefaultConfig() *Config {
	return &Config{
		ChainID:                 31337, // local devnet
		RPCEndpoint:             "http://localhost:8545",
		LoanAmount:              "10000",
		FlashLoanFeeBasisPoints: 10,
		MinSpreadPercent:        1.0,
		EstimatedGasUnits:       600000,
		BasePerNative:           "1/1",
		MaxSnapshotStaleness:    2 * time.Second,
		StepTimeout:             30 * time.Second,
		CycleInterval:           time.Second,
		ReadRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
		},
		PrometheusEnabled:  false,
		PrometheusEndpoint: "",
		Logger:             zap.NewNop(),
	}
}
