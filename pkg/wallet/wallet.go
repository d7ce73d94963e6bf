package wallet

import (
	"crypto/ecdsa"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// DefaultHDPath is the first account of the standard Ethereum derivation path
const DefaultHDPath = "m/44'/60'/0'/0/0"

// Wallet is the key used to sign on both layers
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromPrivateKey parses a hex private key, with or without 0x
func FromPrivateKey(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return newWallet(key), nil
}

// FromMnemonic derives the key at hdPath from a BIP-39 mnemonic.
// An empty hdPath uses DefaultHDPath.
func FromMnemonic(mnemonic, hdPath string) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}

	if hdPath == "" {
		hdPath = DefaultHDPath
	}
	path, err := accounts.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivation path %q", hdPath)
	}

	seed := bip39.NewSeed(mnemonic, "")
	node, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create master key")
	}

	for _, index := range path {
		node, err = node.Derive(index)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot derive %s", hdPath)
		}
	}

	priv, err := node.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "cannot extract private key")
	}
	return newWallet(priv.ToECDSA()), nil
}

// Load builds a wallet from whichever secret is configured, preferring the private key
func Load(privateKey, mnemonic, hdPath string) (*Wallet, error) {
	switch {
	case privateKey != "":
		return FromPrivateKey(privateKey)
	case mnemonic != "":
		return FromMnemonic(mnemonic, hdPath)
	default:
		return nil, errors.New("no private key or mnemonic configured")
	}
}

func newWallet(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the account address
func (w *Wallet) Address() common.Address {
	return w.address
}

// PrivateKey returns the signing key
func (w *Wallet) PrivateKey() *ecdsa.PrivateKey {
	return w.key
}
