package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known development mnemonic and its first account
const (
	devMnemonic = "test test test test test test test test test test test junk"
	devKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	devAddress1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestFromPrivateKey(t *testing.T) {
	for _, key := range []string{devKey, "0x" + devKey, " " + devKey + "\n"} {
		w, err := FromPrivateKey(key)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(devAddress), w.Address())
		assert.NotNil(t, w.PrivateKey())
	}

	_, err := FromPrivateKey("not-a-key")
	assert.Error(t, err)
}

func TestFromMnemonic(t *testing.T) {
	w, err := FromMnemonic(devMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), w.Address())

	w, err = FromMnemonic(devMnemonic, "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress1), w.Address())
}

func TestFromMnemonicNormalizesWhitespace(t *testing.T) {
	w, err := FromMnemonic("  test test test test test test\ttest test test test test   junk ", DefaultHDPath)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), w.Address())
}

func TestFromMnemonicRejects(t *testing.T) {
	_, err := FromMnemonic("test test test", "")
	assert.ErrorContains(t, err, "invalid mnemonic")

	_, err = FromMnemonic(devMnemonic, "not/a/path")
	assert.ErrorContains(t, err, "invalid derivation path")
}

func TestLoad(t *testing.T) {
	w, err := Load(devKey, "ignored because a key is set", "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), w.Address())

	w, err = Load("", devMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), w.Address())

	_, err = Load("", "", "")
	assert.Error(t, err)
}
