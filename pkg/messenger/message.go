package messenger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	errNoMessage      = errors.New("no cross-domain message in receipt")
	errNoWithdrawal   = errors.New("no withdrawal in receipt")
	errWithdrawalHash = errors.New("withdrawal hash mismatch")
)

// crossDomainMessage is an L1 -> L2 message as emitted by the L1 messenger
type crossDomainMessage struct {
	Target   common.Address
	Sender   common.Address
	Message  []byte
	Nonce    *big.Int // versioned, version in the top two bytes
	GasLimit *big.Int
	Value    *big.Int
}

func (m *crossDomainMessage) version() uint64 {
	return new(big.Int).Rsh(m.Nonce, 240).Uint64()
}

// Hash is the key the L2 messenger records the relay result under
func (m *crossDomainMessage) Hash() (common.Hash, error) {
	var (
		data []byte
		err  error
	)
	switch m.version() {
	case 0:
		data, err = legacyRelayABI.Pack("relayMessage", m.Target, m.Sender, m.Message, m.Nonce)
	case 1:
		data, err = messengerABI.Pack("relayMessage", m.Nonce, m.Sender, m.Target, m.Value, m.GasLimit, m.Message)
	default:
		return common.Hash{}, errors.Errorf("unknown message version %d", m.version())
	}
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode relayMessage")
	}
	return crypto.Keccak256Hash(data), nil
}

// parseSentMessage returns the first message the L1 messenger at source emitted in receipt
func parseSentMessage(receipt *types.Receipt, source common.Address) (*crossDomainMessage, error) {
	sent := messengerABI.Events["SentMessage"]
	ext := messengerABI.Events["SentMessageExtension1"]

	for i, lg := range receipt.Logs {
		if lg.Address != source || len(lg.Topics) != 2 || lg.Topics[0] != sent.ID {
			continue
		}

		out, err := messengerABI.Unpack("SentMessage", lg.Data)
		if err != nil {
			return nil, errors.Wrap(err, "decode SentMessage")
		}
		msg := &crossDomainMessage{
			Target:   common.BytesToAddress(lg.Topics[1].Bytes()),
			Sender:   out[0].(common.Address),
			Message:  out[1].([]byte),
			Nonce:    out[2].(*big.Int),
			GasLimit: out[3].(*big.Int),
			Value:    new(big.Int),
		}

		// the value travels in the extension event that directly follows
		if i+1 < len(receipt.Logs) {
			next := receipt.Logs[i+1]
			if next.Address == source && len(next.Topics) == 2 && next.Topics[0] == ext.ID {
				out, err := messengerABI.Unpack("SentMessageExtension1", next.Data)
				if err != nil {
					return nil, errors.Wrap(err, "decode SentMessageExtension1")
				}
				msg.Value = out[0].(*big.Int)
			}
		}
		return msg, nil
	}
	return nil, errNoMessage
}

// withdrawalTx mirrors Types.WithdrawalTransaction of the OptimismPortal
type withdrawalTx struct {
	Nonce    *big.Int
	Sender   common.Address
	Target   common.Address
	Value    *big.Int
	GasLimit *big.Int
	Data     []byte
}

// outputRootProof mirrors Types.OutputRootProof
type outputRootProof struct {
	Version                  [32]byte
	StateRoot                [32]byte
	MessagePasserStorageRoot [32]byte
	LatestBlockhash          [32]byte
}

// Root is the L2 output root committed to by the proof
func (p outputRootProof) Root() common.Hash {
	return crypto.Keccak256Hash(p.Version[:], p.StateRoot[:], p.MessagePasserStorageRoot[:], p.LatestBlockhash[:])
}

// l2Output mirrors Types.OutputProposal
type l2Output struct {
	OutputRoot    [32]byte
	Timestamp     *big.Int
	L2BlockNumber *big.Int
}

var withdrawalArgs = mustArguments("uint256", "address", "address", "uint256", "uint256", "bytes")

func mustArguments(kinds ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(kinds))
	for _, kind := range kinds {
		t, err := abi.NewType(kind, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: t})
	}
	return args
}

// Hash computes the withdrawal hash the portal keys proofs and finalizations by
func (w *withdrawalTx) Hash() (common.Hash, error) {
	data, err := withdrawalArgs.Pack(w.Nonce, w.Sender, w.Target, w.Value, w.GasLimit, w.Data)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode withdrawal")
	}
	return crypto.Keccak256Hash(data), nil
}

// storageSlot is the slot of sentMessages[hash] in the L2ToL1MessagePasser
func storageSlot(withdrawalHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(withdrawalHash.Bytes(), common.Hash{}.Bytes())
}

// parseMessagePassed returns the first withdrawal initiated in receipt and checks its hash
func parseMessagePassed(receipt *types.Receipt) (*withdrawalTx, common.Hash, error) {
	event := passerABI.Events["MessagePassed"]

	for _, lg := range receipt.Logs {
		if lg.Address != L2ToL1MessagePasser || len(lg.Topics) != 4 || lg.Topics[0] != event.ID {
			continue
		}

		out, err := passerABI.Unpack("MessagePassed", lg.Data)
		if err != nil {
			return nil, common.Hash{}, errors.Wrap(err, "decode MessagePassed")
		}

		w := &withdrawalTx{
			Nonce:    new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			Sender:   common.BytesToAddress(lg.Topics[2].Bytes()),
			Target:   common.BytesToAddress(lg.Topics[3].Bytes()),
			Value:    out[0].(*big.Int),
			GasLimit: out[1].(*big.Int),
			Data:     out[2].([]byte),
		}
		emitted := common.Hash(out[3].([32]byte))

		hash, err := w.Hash()
		if err != nil {
			return nil, common.Hash{}, err
		}
		if hash != emitted {
			return nil, common.Hash{}, errors.Wrapf(errWithdrawalHash, "computed %s, emitted %s", hash.Hex(), emitted.Hex())
		}
		return w, hash, nil
	}
	return nil, common.Hash{}, errNoWithdrawal
}
