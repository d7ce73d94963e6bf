package messenger

import (
	"context"
	"log"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// ProveWithdrawal submits the storage proof of the withdrawal sent by txHash to the
// OptimismPortal and waits for it to be mined.
func (m *Messenger) ProveWithdrawal(ctx context.Context, txHash common.Hash) error {
	if m.proofs == nil {
		return errors.New("no eth_getProof capable L2 connection")
	}

	receipt, err := m.receipt(ctx, m.l2, txHash)
	if err != nil {
		return errors.Wrap(err, "withdrawal receipt")
	}
	w, hash, err := parseMessagePassed(receipt)
	if err != nil {
		return err
	}

	index, err := callUint(ctx, m.l1, outputOracleABI, m.cfg.Contracts.L2OutputOracle, "getL2OutputIndexAfter", receipt.BlockNumber)
	if err != nil {
		return err
	}
	out, err := call(ctx, m.l1, outputOracleABI, m.cfg.Contracts.L2OutputOracle, "getL2Output", index)
	if err != nil {
		return err
	}
	output := *abi.ConvertType(out[0], new(l2Output)).(*l2Output)

	header, err := m.l2.client.HeaderByNumber(ctx, output.L2BlockNumber)
	if err != nil {
		return errors.Wrapf(err, "failed to get L2 block %s", output.L2BlockNumber)
	}

	account, err := m.proofs.GetProof(ctx, L2ToL1MessagePasser, []string{storageSlot(hash).Hex()}, output.L2BlockNumber)
	if err != nil {
		return errors.Wrap(err, "eth_getProof")
	}
	if len(account.StorageProof) != 1 {
		return errors.Errorf("expected one storage proof, got %d", len(account.StorageProof))
	}
	withdrawalProof, err := decodeProof(account.StorageProof[0].Proof)
	if err != nil {
		return err
	}

	proof := outputRootProof{
		StateRoot:                header.Root,
		MessagePasserStorageRoot: account.StorageHash,
		LatestBlockhash:          header.Hash(),
	}
	if root := proof.Root(); root != output.OutputRoot {
		return errors.Errorf("output root mismatch at L2 block %s: computed %s, oracle has %s",
			output.L2BlockNumber, root.Hex(), common.Hash(output.OutputRoot).Hex())
	}

	data, err := portalABI.Pack("proveWithdrawalTransaction", *w, index, proof, withdrawalProof)
	if err != nil {
		return errors.Wrap(err, "failed to pack prove data")
	}

	log.Printf("[Messenger] proving withdrawal %s against output %s", hash.Hex(), index)
	tx, err := m.send(ctx, m.l1, m.cfg.Contracts.OptimismPortal, nil, data)
	if err != nil {
		return err
	}
	_, err = waitMined(ctx, m.l1.client, tx)
	return err
}

// FinalizeMessage relays a proven withdrawal whose challenge period is over.
// Finalizing an already finalized withdrawal is a no-op.
func (m *Messenger) FinalizeMessage(ctx context.Context, txHash common.Hash) error {
	receipt, err := m.receipt(ctx, m.l2, txHash)
	if err != nil {
		return errors.Wrap(err, "withdrawal receipt")
	}
	w, hash, err := parseMessagePassed(receipt)
	if err != nil {
		return err
	}

	done, err := m.finalized(ctx, hash)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	data, err := portalABI.Pack("finalizeWithdrawalTransaction", *w)
	if err != nil {
		return errors.Wrap(err, "failed to pack finalize data")
	}

	log.Printf("[Messenger] finalizing withdrawal %s", hash.Hex())
	tx, err := m.send(ctx, m.l1, m.cfg.Contracts.OptimismPortal, nil, data)
	if err != nil {
		return err
	}
	_, err = waitMined(ctx, m.l1.client, tx)
	return err
}

func decodeProof(nodes []string) ([][]byte, error) {
	proof := make([][]byte, 0, len(nodes))
	for _, node := range nodes {
		b, err := hexutil.Decode(node)
		if err != nil {
			return nil, errors.Wrap(err, "bad proof node")
		}
		proof = append(proof, b)
	}
	return proof, nil
}
