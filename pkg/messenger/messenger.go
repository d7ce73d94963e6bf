package messenger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/pkg/errors"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/rpc"
	"op-bridge/pkg/types"
	"op-bridge/pkg/wallet"
)

const (
	DefaultPollInterval        = 4 * time.Second
	DefaultDepositMinGasLimit  = 200_000
	DefaultWithdrawMinGasLimit = 0
)

// Config holds chain specific settings of the messenger
type Config struct {
	L1ChainID           uint64
	L2ChainID           uint64
	Contracts           Contracts
	PollInterval        time.Duration
	DepositMinGasLimit  uint32
	WithdrawMinGasLimit uint32
	GasPrice            *big.Int // fixed gas price, nil to ask the node
	DisableAutoProve    bool
}

// backend is the subset of ethclient.Client the messenger uses
type backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// proofBackend serves eth_getProof
type proofBackend interface {
	GetProof(ctx context.Context, account common.Address, keys []string, blockNumber *big.Int) (*gethclient.AccountResult, error)
}

// chain is one side of the bridge
type chain struct {
	layer   types.Layer
	chainID *big.Int
	client  backend

	// serializes nonce lookup and broadcast for this signer
	sendMu sync.Mutex
}

// Messenger talks to the OP Stack contracts on both layers. It implements bridge.Messenger
// and the balance query.
type Messenger struct {
	cfg    Config
	wallet *wallet.Wallet
	l1     *chain
	l2     *chain
	proofs proofBackend

	// replaced in tests
	statusFn func(ctx context.Context, txHash common.Hash, direction types.Direction) (types.MessageStatus, error)
	proveFn  func(ctx context.Context, txHash common.Hash) error
}

var _ bridge.Messenger = (*Messenger)(nil)

// New creates a messenger over established connections to both layers
func New(cfg Config, w *wallet.Wallet, l1, l2 *rpc.Conn) (*Messenger, error) {
	if l1 == nil || l2 == nil {
		return nil, errors.New("both L1 and L2 connections are required")
	}
	return newMessenger(cfg, w, l1.Eth, l2.Eth, l2.Geth)
}

func newMessenger(cfg Config, w *wallet.Wallet, l1, l2 backend, proofs proofBackend) (*Messenger, error) {
	if w == nil {
		return nil, errors.New("wallet is required")
	}
	if err := cfg.Contracts.validate(); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	m := &Messenger{
		cfg:    cfg,
		wallet: w,
		l1:     &chain{layer: types.L1, chainID: new(big.Int).SetUint64(cfg.L1ChainID), client: l1},
		l2:     &chain{layer: types.L2, chainID: new(big.Int).SetUint64(cfg.L2ChainID), client: l2},
		proofs: proofs,
	}
	m.statusFn = m.MessageStatus
	m.proveFn = m.ProveWithdrawal
	return m, nil
}

func (c Contracts) validate() error {
	zero := common.Address{}
	switch {
	case c.L1StandardBridge == zero:
		return errors.New("L1StandardBridge address is not set")
	case c.L1CrossDomainMessenger == zero:
		return errors.New("L1CrossDomainMessenger address is not set")
	case c.OptimismPortal == zero:
		return errors.New("OptimismPortal address is not set")
	case c.L2OutputOracle == zero:
		return errors.New("L2OutputOracle address is not set")
	}
	return nil
}

// Address returns the signer address
func (m *Messenger) Address() common.Address {
	return m.wallet.Address()
}

// DepositETH sends amount wei through the L1StandardBridge
func (m *Messenger) DepositETH(ctx context.Context, amount *big.Int, recipient *common.Address) (bridge.TxHandle, error) {
	var (
		data []byte
		err  error
	)
	if recipient != nil {
		data, err = l1BridgeABI.Pack("depositETHTo", *recipient, m.cfg.DepositMinGasLimit, []byte{})
	} else {
		data, err = l1BridgeABI.Pack("depositETH", m.cfg.DepositMinGasLimit, []byte{})
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack deposit data")
	}

	tx, err := m.send(ctx, m.l1, m.cfg.Contracts.L1StandardBridge, amount, data)
	if err != nil {
		return nil, errors.Wrap(err, "deposit")
	}
	return &txHandle{tx: tx, client: m.l1.client}, nil
}

// WithdrawETH sends amount wei through the L2StandardBridge predeploy
func (m *Messenger) WithdrawETH(ctx context.Context, amount *big.Int, recipient *common.Address) (bridge.TxHandle, error) {
	var (
		data []byte
		err  error
	)
	if recipient != nil {
		data, err = l2BridgeABI.Pack("withdrawTo", LegacyERC20ETH, *recipient, amount, m.cfg.WithdrawMinGasLimit, []byte{})
	} else {
		data, err = l2BridgeABI.Pack("withdraw", LegacyERC20ETH, amount, m.cfg.WithdrawMinGasLimit, []byte{})
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack withdrawal data")
	}

	tx, err := m.send(ctx, m.l2, L2StandardBridge, amount, data)
	if err != nil {
		return nil, errors.Wrap(err, "withdraw")
	}
	return &txHandle{tx: tx, client: m.l2.client}, nil
}

// Balance returns the signer's balance in wei on layer
func (m *Messenger) Balance(ctx context.Context, layer types.Layer) (*big.Int, error) {
	c := m.chainFor(layer)
	balance, err := c.client.BalanceAt(ctx, m.wallet.Address(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s balance", layer)
	}
	return balance, nil
}

func (m *Messenger) chainFor(layer types.Layer) *chain {
	if layer == types.L2 {
		return m.l2
	}
	return m.l1
}

// send signs and broadcasts a contract call from the wallet
func (m *Messenger) send(ctx context.Context, c *chain, to common.Address, value *big.Int, data []byte) (*gethtypes.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	from := m.wallet.Address()
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	gasPrice, err := m.gasPrice(ctx, c)
	if err != nil {
		return nil, err
	}

	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}
	gasLimit = gasLimit * 120 / 100 // Add 20% buffer

	balance, err := c.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, errors.Errorf("insufficient balance on %s: have %s wei, need %s wei", c.layer, balance, cost)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signedTx, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(c.chainID), m.wallet.PrivateKey())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}
	return signedTx, nil
}

func (m *Messenger) gasPrice(ctx context.Context, c *chain) (*big.Int, error) {
	if m.cfg.GasPrice != nil {
		return new(big.Int).Set(m.cfg.GasPrice), nil
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}
	return gasPrice, nil
}

// call runs a read-only contract method against the latest block
func call(ctx context.Context, c *chain, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", method)
	}
	return out, nil
}

func callBool(ctx context.Context, c *chain, contract abi.ABI, to common.Address, method string, args ...interface{}) (bool, error) {
	out, err := call(ctx, c, contract, to, method, args...)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func callUint(ctx context.Context, c *chain, contract abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := call(ctx, c, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// txHandle waits for a sent transaction to be mined
type txHandle struct {
	tx     *gethtypes.Transaction
	client backend
}

func (h *txHandle) Hash() common.Hash {
	return h.tx.Hash()
}

// Wait blocks until the transaction is included. A reverted transaction is an error.
func (h *txHandle) Wait(ctx context.Context) error {
	_, err := waitMined(ctx, h.client, h.tx)
	return err
}

func waitMined(ctx context.Context, client backend, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for %s", tx.Hash().Hex())
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return receipt, errors.Errorf("transaction %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}
