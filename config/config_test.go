package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"op-bridge/pkg/messenger"
	"op-bridge/pkg/wallet"
)

func TestDefaultsWithInfuraKey(t *testing.T) {
	v := viper.New()
	v.Set("infura_key", "abc123")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "goerli", cfg.Network)
	assert.Equal(t, uint64(5), cfg.L1ChainID)
	assert.Equal(t, uint64(420), cfg.L2ChainID)
	assert.Equal(t, []string{"https://goerli.infura.io/v3/abc123"}, cfg.L1RPCURLs)
	assert.Equal(t, []string{"https://optimism-goerli.infura.io/v3/abc123"}, cfg.L2RPCURLs)
	assert.Equal(t, Networks["goerli"].Contracts, cfg.Contracts)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.StatusTimeout)
	assert.Equal(t, uint32(200_000), cfg.DepositMinGasLimit)
	assert.Zero(t, cfg.WithdrawMinGasLimit)
	assert.Equal(t, wallet.DefaultHDPath, cfg.HDPath)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Nil(t, cfg.GasPrice)
}

func TestExplicitRPCURLsWinOverInfura(t *testing.T) {
	v := viper.New()
	v.Set("network", "Sepolia")
	v.Set("infura_key", "abc123")
	v.Set("l1_rpc_urls", "https://l1-a.example, https://l1-b.example")
	v.Set("l2_rpc_urls", []string{"https://l2.example"})

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Network)
	assert.Equal(t, []string{"https://l1-a.example", "https://l1-b.example"}, cfg.L1RPCURLs)
	assert.Equal(t, []string{"https://l2.example"}, cfg.L2RPCURLs)
	assert.Equal(t, uint64(11155420), cfg.L2ChainID)
}

func TestUnknownNetwork(t *testing.T) {
	v := viper.New()
	v.Set("network", "moonbase")
	v.Set("infura_key", "abc123")

	_, err := FromViper(v)
	assert.ErrorContains(t, err, "unknown network")
}

func TestMissingRPC(t *testing.T) {
	_, err := FromViper(viper.New())
	assert.ErrorContains(t, err, "RPC endpoints not found")
}

func TestCustomNetwork(t *testing.T) {
	v := viper.New()
	v.Set("network", "custom")
	v.Set("l1_rpc_urls", "http://localhost:8545")
	v.Set("l2_rpc_urls", "http://localhost:9545")

	_, err := FromViper(v)
	assert.ErrorContains(t, err, "l1_chain_id and l2_chain_id")

	v.Set("l1_chain_id", 900)
	v.Set("l2_chain_id", 901)
	v.Set("contracts.l1_standard_bridge", "0x1000000000000000000000000000000000000001")
	v.Set("contracts.l1_cross_domain_messenger", "0x1000000000000000000000000000000000000002")
	v.Set("contracts.optimism_portal", "0x1000000000000000000000000000000000000003")
	v.Set("contracts.l2_output_oracle", "0x1000000000000000000000000000000000000004")
	v.Set("status_timeout", "30m")
	v.Set("gas_price", "1000000000")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), cfg.L1ChainID)
	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000003"), cfg.Contracts.OptimismPortal)
	assert.Equal(t, 30*time.Minute, cfg.StatusTimeout)
	assert.Equal(t, big.NewInt(1_000_000_000), cfg.GasPrice)

	m := cfg.Messenger()
	assert.Equal(t, cfg.Contracts, m.Contracts)
	assert.Equal(t, uint64(901), m.L2ChainID)
	assert.Equal(t, messenger.DefaultPollInterval, m.PollInterval)
}

func TestInvalidValues(t *testing.T) {
	tests := map[string]struct {
		key, value, want string
	}{
		"contract":      {"contracts.optimism_portal", "portal", "invalid address"},
		"gas price":     {"gas_price", "-5", "gas_price"},
		"poll interval": {"poll_interval", "0s", "poll_interval"},
		"timeout":       {"status_timeout", "-1s", "status_timeout"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			v.Set("infura_key", "abc123")
			v.Set(tt.key, tt.value)

			_, err := FromViper(v)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OP_BRIDGE_NETWORK", "mainnet")
	t.Setenv("OP_BRIDGE_INFURA_KEY", "envkey")
	t.Setenv("OP_BRIDGE_CONTRACTS_OPTIMISM_PORTAL", "0x2000000000000000000000000000000000000002")
	t.Setenv("OP_BRIDGE_POLL_INTERVAL", "10s")

	v := viper.New()
	Configure(v)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.L1ChainID)
	assert.Equal(t, []string{"https://mainnet.infura.io/v3/envkey"}, cfg.L1RPCURLs)
	assert.Equal(t, common.HexToAddress("0x2000000000000000000000000000000000000002"), cfg.Contracts.OptimismPortal)
	assert.Equal(t, Networks["mainnet"].Contracts.L2OutputOracle, cfg.Contracts.L2OutputOracle)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestWallet(t *testing.T) {
	cfg := &Config{HDPath: wallet.DefaultHDPath}
	_, err := cfg.Wallet()
	assert.ErrorContains(t, err, "no signing key")

	cfg.PrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	w, err := cfg.Wallet()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address())
}

func TestHistoryPath(t *testing.T) {
	cfg := &Config{HistoryFile: "/tmp/ops.json"}
	path, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ops.json", path)
}
