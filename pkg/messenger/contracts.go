package messenger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// L2 predeploys, identical on every OP Stack chain
var (
	L2CrossDomainMessenger = common.HexToAddress("0x4200000000000000000000000000000000000007")
	L2StandardBridge       = common.HexToAddress("0x4200000000000000000000000000000000000010")
	L2ToL1MessagePasser    = common.HexToAddress("0x4200000000000000000000000000000000000016")

	// LegacyERC20ETH is the token address the L2 bridge uses for ETH
	LegacyERC20ETH = common.HexToAddress("0xDeadDeAddeAddEAddeadDEaDDEAdDeaDDeAD0000")
)

// Contracts are the L1 side contracts of one OP Stack chain
type Contracts struct {
	L1StandardBridge       common.Address
	L1CrossDomainMessenger common.Address
	OptimismPortal         common.Address
	L2OutputOracle         common.Address
}

const l1StandardBridgeABI = `[
	{"type":"function","name":"depositETH","stateMutability":"payable","inputs":[
		{"name":"_minGasLimit","type":"uint32"},{"name":"_extraData","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"depositETHTo","stateMutability":"payable","inputs":[
		{"name":"_to","type":"address"},{"name":"_minGasLimit","type":"uint32"},{"name":"_extraData","type":"bytes"}],"outputs":[]}
]`

const l2StandardBridgeABI = `[
	{"type":"function","name":"withdraw","stateMutability":"payable","inputs":[
		{"name":"_l2Token","type":"address"},{"name":"_amount","type":"uint256"},
		{"name":"_minGasLimit","type":"uint32"},{"name":"_extraData","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"withdrawTo","stateMutability":"payable","inputs":[
		{"name":"_l2Token","type":"address"},{"name":"_to","type":"address"},{"name":"_amount","type":"uint256"},
		{"name":"_minGasLimit","type":"uint32"},{"name":"_extraData","type":"bytes"}],"outputs":[]}
]`

const crossDomainMessengerABI = `[
	{"type":"event","name":"SentMessage","anonymous":false,"inputs":[
		{"name":"target","type":"address","indexed":true},{"name":"sender","type":"address","indexed":false},
		{"name":"message","type":"bytes","indexed":false},{"name":"messageNonce","type":"uint256","indexed":false},
		{"name":"gasLimit","type":"uint256","indexed":false}]},
	{"type":"event","name":"SentMessageExtension1","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"function","name":"successfulMessages","stateMutability":"view","inputs":[
		{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"failedMessages","stateMutability":"view","inputs":[
		{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"relayMessage","stateMutability":"payable","inputs":[
		{"name":"_nonce","type":"uint256"},{"name":"_sender","type":"address"},{"name":"_target","type":"address"},
		{"name":"_value","type":"uint256"},{"name":"_minGasLimit","type":"uint256"},{"name":"_message","type":"bytes"}],"outputs":[]}
]`

// pre-Bedrock relayMessage, only used to hash version 0 messages
const legacyMessengerABI = `[
	{"type":"function","name":"relayMessage","stateMutability":"nonpayable","inputs":[
		{"name":"_target","type":"address"},{"name":"_sender","type":"address"},
		{"name":"_message","type":"bytes"},{"name":"_messageNonce","type":"uint256"}],"outputs":[]}
]`

const messagePasserABI = `[
	{"type":"event","name":"MessagePassed","anonymous":false,"inputs":[
		{"name":"nonce","type":"uint256","indexed":true},{"name":"sender","type":"address","indexed":true},
		{"name":"target","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false},
		{"name":"gasLimit","type":"uint256","indexed":false},{"name":"data","type":"bytes","indexed":false},
		{"name":"withdrawalHash","type":"bytes32","indexed":false}]}
]`

const withdrawalTupleJSON = `{"name":"_tx","type":"tuple","components":[
	{"name":"nonce","type":"uint256"},{"name":"sender","type":"address"},{"name":"target","type":"address"},
	{"name":"value","type":"uint256"},{"name":"gasLimit","type":"uint256"},{"name":"data","type":"bytes"}]}`

const optimismPortalABI = `[
	{"type":"function","name":"proveWithdrawalTransaction","stateMutability":"nonpayable","inputs":[
		` + withdrawalTupleJSON + `,
		{"name":"_l2OutputIndex","type":"uint256"},
		{"name":"_outputRootProof","type":"tuple","components":[
			{"name":"version","type":"bytes32"},{"name":"stateRoot","type":"bytes32"},
			{"name":"messagePasserStorageRoot","type":"bytes32"},{"name":"latestBlockhash","type":"bytes32"}]},
		{"name":"_withdrawalProof","type":"bytes[]"}],"outputs":[]},
	{"type":"function","name":"finalizeWithdrawalTransaction","stateMutability":"nonpayable","inputs":[
		` + withdrawalTupleJSON + `],"outputs":[]},
	{"type":"function","name":"provenWithdrawals","stateMutability":"view","inputs":[
		{"name":"","type":"bytes32"}],"outputs":[
		{"name":"outputRoot","type":"bytes32"},{"name":"timestamp","type":"uint128"},{"name":"l2OutputIndex","type":"uint128"}]},
	{"type":"function","name":"finalizedWithdrawals","stateMutability":"view","inputs":[
		{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

const l2OutputOracleABI = `[
	{"type":"function","name":"latestBlockNumber","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint256"}]},
	{"type":"function","name":"getL2OutputIndexAfter","stateMutability":"view","inputs":[
		{"name":"_l2BlockNumber","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getL2Output","stateMutability":"view","inputs":[
		{"name":"_l2OutputIndex","type":"uint256"}],"outputs":[
		{"name":"","type":"tuple","components":[
			{"name":"outputRoot","type":"bytes32"},{"name":"timestamp","type":"uint128"},{"name":"l2BlockNumber","type":"uint128"}]}]},
	{"type":"function","name":"FINALIZATION_PERIOD_SECONDS","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint256"}]}
]`

var (
	l1BridgeABI     = mustParseABI(l1StandardBridgeABI)
	l2BridgeABI     = mustParseABI(l2StandardBridgeABI)
	messengerABI    = mustParseABI(crossDomainMessengerABI)
	legacyRelayABI  = mustParseABI(legacyMessengerABI)
	passerABI       = mustParseABI(messagePasserABI)
	portalABI       = mustParseABI(optimismPortalABI)
	outputOracleABI = mustParseABI(l2OutputOracleABI)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}
