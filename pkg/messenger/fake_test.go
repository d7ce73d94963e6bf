package messenger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/pkg/errors"
)

var testContracts = Contracts{
	L1StandardBridge:       common.HexToAddress("0x1000000000000000000000000000000000000001"),
	L1CrossDomainMessenger: common.HexToAddress("0x1000000000000000000000000000000000000002"),
	OptimismPortal:         common.HexToAddress("0x1000000000000000000000000000000000000003"),
	L2OutputOracle:         common.HexToAddress("0x1000000000000000000000000000000000000004"),
}

// handler returns the outputs of a view method given its decoded inputs
type handler func(args []interface{}) []interface{}

// fakeBackend is an in-memory node answering only what the messenger asks for
type fakeBackend struct {
	mu       sync.Mutex
	abis     []abi.ABI
	methods  map[string]handler
	receipts map[common.Hash]*gethtypes.Receipt
	sent     []*gethtypes.Transaction
	headers  map[uint64]*gethtypes.Header
	head     *gethtypes.Header
	balance  *big.Int
	revert   bool // receipts of sent transactions fail
}

func newFakeBackend(abis ...abi.ABI) *fakeBackend {
	return &fakeBackend{
		abis:     abis,
		methods:  make(map[string]handler),
		receipts: make(map[common.Hash]*gethtypes.Receipt),
		headers:  make(map[uint64]*gethtypes.Header),
		head:     &gethtypes.Header{Number: big.NewInt(100), Time: 1_000},
		balance:  new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
	}
}

func (f *fakeBackend) on(method string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[method] = h
}

func (f *fakeBackend) addReceipt(hash common.Hash, block int64, logs ...*gethtypes.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: big.NewInt(block),
		Logs:        logs,
	}
}

func (f *fakeBackend) sentTxs() []*gethtypes.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gethtypes.Transaction(nil), f.sent...)
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}
	for _, contract := range f.abis {
		method, err := contract.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		h, ok := f.methods[method.Name]
		if !ok {
			return nil, errors.Errorf("unexpected call to %s", method.Name)
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(h(args)...)
	}
	return nil, errors.New("unknown selector")
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) HeaderByNumber(_ context.Context, number *big.Int) (*gethtypes.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if number == nil {
		return f.head, nil
	}
	if h, ok := f.headers[number.Uint64()]; ok {
		return h, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)

	status := gethtypes.ReceiptStatusSuccessful
	if f.revert {
		status = gethtypes.ReceiptStatusFailed
	}
	f.receipts[tx.Hash()] = &gethtypes.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(101),
	}
	return nil
}

type fakeProofs struct {
	result *gethclient.AccountResult
	keys   []string
}

func (f *fakeProofs) GetProof(_ context.Context, _ common.Address, keys []string, _ *big.Int) (*gethclient.AccountResult, error) {
	f.keys = keys
	return f.result, nil
}
