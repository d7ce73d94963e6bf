package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"op-bridge/pkg/messenger"
	"op-bridge/pkg/operation"
	"op-bridge/pkg/wallet"
)

const CustomNetwork = "custom"

// Network is a known L1/L2 pair
type Network struct {
	L1ChainID uint64
	L2ChainID uint64
	Contracts messenger.Contracts
	// Infura subdomains, e.g. "goerli" and "optimism-goerli"
	InfuraL1 string
	InfuraL2 string
}

// Networks are the built-in OP Stack deployments
var Networks = map[string]Network{
	"goerli": {
		L1ChainID: 5,
		L2ChainID: 420,
		Contracts: messenger.Contracts{
			L1StandardBridge:       common.HexToAddress("0x636Af16bf2f682dD3109e60102b8E1A089FedAa8"),
			L1CrossDomainMessenger: common.HexToAddress("0x5086d1eEF304eb5284A0f6720f79403b4e9bE294"),
			OptimismPortal:         common.HexToAddress("0x5b47E1A08Ea6d985D6649300584e6722Ec4B1383"),
			L2OutputOracle:         common.HexToAddress("0xE6Dfba0953616Bacab0c9A8ecb3a9BBa77FC15c0"),
		},
		InfuraL1: "goerli",
		InfuraL2: "optimism-goerli",
	},
	"sepolia": {
		L1ChainID: 11155111,
		L2ChainID: 11155420,
		Contracts: messenger.Contracts{
			L1StandardBridge:       common.HexToAddress("0xFBb0621E0B23b5478B630BD55a5f21f67730B0F1"),
			L1CrossDomainMessenger: common.HexToAddress("0x58Cc85b8D04EA49cC6DBd3CbFFd00B4B8D6cb3ef"),
			OptimismPortal:         common.HexToAddress("0x16Fc5058F25648194471939df75CF27A2e143F24"),
			L2OutputOracle:         common.HexToAddress("0x90E9c4f8a994a250F6aEfd61CAFb4F2e895D458F"),
		},
		InfuraL1: "sepolia",
		InfuraL2: "optimism-sepolia",
	},
	"mainnet": {
		L1ChainID: 1,
		L2ChainID: 10,
		Contracts: messenger.Contracts{
			L1StandardBridge:       common.HexToAddress("0x99C9fc46f92E8a1c0deC1b1747d010903E884bE1"),
			L1CrossDomainMessenger: common.HexToAddress("0x25ace71c97B33Cc4729CF772ae268934F7ab5fA1"),
			OptimismPortal:         common.HexToAddress("0xbEb5Fc579115071764c7423A4f12eDde41f106Ed"),
			L2OutputOracle:         common.HexToAddress("0xdfe97868233d1aa22e815a266982f2cf17685a27"),
		},
		InfuraL1: "mainnet",
		InfuraL2: "optimism-mainnet",
	},
}

// Config holds the application configuration
type Config struct {
	Network   string
	L1ChainID uint64
	L2ChainID uint64
	Contracts messenger.Contracts
	L1RPCURLs []string
	L2RPCURLs []string

	PrivateKey string
	Mnemonic   string
	HDPath     string

	PollInterval        time.Duration
	StatusTimeout       time.Duration // 0 waits forever
	DepositMinGasLimit  uint32
	WithdrawMinGasLimit uint32
	GasPrice            *big.Int // wei, nil asks the node
	DisableAutoProve    bool

	ServerAddr  string
	HistoryFile string
	Retention   time.Duration
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.GetViper()
	Configure(v)

	// Read config file (optional)
	_ = v.ReadInConfig()

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Configure sets where v looks for the config file and environment variables
func Configure(v *viper.Viper) {
	v.SetConfigName(".op-bridge")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	// Read from environment variables, OP_BRIDGE_CONTRACTS_OPTIMISM_PORTAL for contracts.optimism_portal
	v.SetEnvPrefix("OP_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("network", "goerli")
	v.SetDefault("hd_path", wallet.DefaultHDPath)
	v.SetDefault("poll_interval", messenger.DefaultPollInterval)
	v.SetDefault("status_timeout", 0)
	v.SetDefault("min_gas_limit", messenger.DefaultDepositMinGasLimit)
	v.SetDefault("withdraw_min_gas_limit", messenger.DefaultWithdrawMinGasLimit)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("retention", operation.DefaultRetention)
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Network:             strings.ToLower(v.GetString("network")),
		L1RPCURLs:           splitList(v.GetStringSlice("l1_rpc_urls")),
		L2RPCURLs:           splitList(v.GetStringSlice("l2_rpc_urls")),
		PrivateKey:          v.GetString("private_key"),
		Mnemonic:            v.GetString("mnemonic"),
		HDPath:              v.GetString("hd_path"),
		PollInterval:        v.GetDuration("poll_interval"),
		StatusTimeout:       v.GetDuration("status_timeout"),
		DepositMinGasLimit:  v.GetUint32("min_gas_limit"),
		WithdrawMinGasLimit: v.GetUint32("withdraw_min_gas_limit"),
		DisableAutoProve:    v.GetBool("disable_auto_prove"),
		ServerAddr:          v.GetString("server_addr"),
		HistoryFile:         v.GetString("history_file"),
		Retention:           v.GetDuration("retention"),
	}

	network, known := Networks[cfg.Network]
	if !known && cfg.Network != CustomNetwork {
		return nil, errors.Errorf("unknown network %q, use one of goerli, sepolia, mainnet or custom", cfg.Network)
	}

	cfg.L1ChainID = network.L1ChainID
	cfg.L2ChainID = network.L2ChainID
	if v.IsSet("l1_chain_id") {
		cfg.L1ChainID = v.GetUint64("l1_chain_id")
	}
	if v.IsSet("l2_chain_id") {
		cfg.L2ChainID = v.GetUint64("l2_chain_id")
	}
	if cfg.L1ChainID == 0 || cfg.L2ChainID == 0 {
		return nil, errors.New("l1_chain_id and l2_chain_id are required for a custom network")
	}

	cfg.Contracts = network.Contracts
	overrides := map[string]*common.Address{
		"contracts.l1_standard_bridge":        &cfg.Contracts.L1StandardBridge,
		"contracts.l1_cross_domain_messenger": &cfg.Contracts.L1CrossDomainMessenger,
		"contracts.optimism_portal":           &cfg.Contracts.OptimismPortal,
		"contracts.l2_output_oracle":          &cfg.Contracts.L2OutputOracle,
	}
	for key, addr := range overrides {
		value := v.GetString(key)
		if value == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return nil, errors.Errorf("%s: invalid address %q", key, value)
		}
		*addr = common.HexToAddress(value)
	}

	if infuraKey := v.GetString("infura_key"); infuraKey != "" && known {
		if len(cfg.L1RPCURLs) == 0 {
			cfg.L1RPCURLs = []string{infuraURL(network.InfuraL1, infuraKey)}
		}
		if len(cfg.L2RPCURLs) == 0 {
			cfg.L2RPCURLs = []string{infuraURL(network.InfuraL2, infuraKey)}
		}
	}
	if len(cfg.L1RPCURLs) == 0 || len(cfg.L2RPCURLs) == 0 {
		return nil, errors.New("RPC endpoints not found. Please set OP_BRIDGE_INFURA_KEY, or OP_BRIDGE_L1_RPC_URLS and OP_BRIDGE_L2_RPC_URLS, or create a .op-bridge.yaml config file")
	}

	if gasPrice := v.GetString("gas_price"); gasPrice != "" {
		wei, ok := new(big.Int).SetString(gasPrice, 10)
		if !ok || wei.Sign() <= 0 {
			return nil, errors.Errorf("gas_price: %q is not a positive wei amount", gasPrice)
		}
		cfg.GasPrice = wei
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll_interval must be positive")
	}
	if cfg.StatusTimeout < 0 {
		return nil, errors.New("status_timeout must not be negative")
	}

	return cfg, nil
}

// Messenger returns the messenger settings
func (c *Config) Messenger() messenger.Config {
	return messenger.Config{
		L1ChainID:           c.L1ChainID,
		L2ChainID:           c.L2ChainID,
		Contracts:           c.Contracts,
		PollInterval:        c.PollInterval,
		DepositMinGasLimit:  c.DepositMinGasLimit,
		WithdrawMinGasLimit: c.WithdrawMinGasLimit,
		GasPrice:            c.GasPrice,
		DisableAutoProve:    c.DisableAutoProve,
	}
}

// Wallet loads the signing key
func (c *Config) Wallet() (*wallet.Wallet, error) {
	if c.PrivateKey == "" && c.Mnemonic == "" {
		return nil, errors.New("no signing key found. Please set OP_BRIDGE_PRIVATE_KEY or OP_BRIDGE_MNEMONIC")
	}
	return wallet.Load(c.PrivateKey, c.Mnemonic, c.HDPath)
}

// HistoryPath returns the operation history file, defaulting to the home directory
func (c *Config) HistoryPath() (string, error) {
	if c.HistoryFile != "" {
		return c.HistoryFile, nil
	}
	return operation.DefaultHistoryPath()
}

func infuraURL(subdomain, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", subdomain, key)
}

// splitList accepts both YAML lists and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
