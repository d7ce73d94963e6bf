package operation

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"op-bridge/pkg/bridge"
	"op-bridge/pkg/types"
)

const (
	DefaultHistoryFileName = ".op-bridge-operations.json"
	DefaultRetention       = 24 * time.Hour
)

var (
	ErrNotFound = errors.New("operation not found")
	ErrExists   = errors.New("operation already exists")
)

// Registry keeps the latest copy of every operation it observes. With a file path set,
// the operations are persisted so interrupted ones can be listed and resumed later.
type Registry struct {
	filePath  string
	retention time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	ops    map[string]*types.BridgeOperation
	active map[common.Hash]string // tx hash -> ID of the operation polling it
}

// historyFile is the JSON structure on disk
type historyFile struct {
	Operations map[string]*types.BridgeOperation `json:"operations"`
}

var _ bridge.Observer = (*Registry)(nil)

// NewRegistry creates a registry. An empty filePath keeps everything in memory.
// Terminal operations are dropped retention after their last transition; 0 keeps them.
func NewRegistry(filePath string, retention time.Duration) (*Registry, error) {
	r := &Registry{
		filePath:  filePath,
		retention: retention,
		now:       time.Now,
		ops:       make(map[string]*types.BridgeOperation),
		active:    make(map[common.Hash]string),
	}

	if filePath != "" {
		if err := r.load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(err, "failed to load operations")
		}
	}
	return r, nil
}

// DefaultHistoryPath returns the history file in the user's home directory
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, DefaultHistoryFileName), nil
}

func (r *Registry) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "failed to unmarshal operations")
	}
	if file.Operations != nil {
		r.ops = file.Operations
	}
	return nil
}

// saveLocked writes all operations; the caller holds mu
func (r *Registry) saveLocked() error {
	if r.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(historyFile{Operations: r.ops}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal operations")
	}

	if err := os.MkdirAll(filepath.Dir(r.filePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	// write then rename so a crash never leaves a torn file
	tempFile := r.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write operations")
	}
	if err := os.Rename(tempFile, r.filePath); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}

// Add registers an operation before it starts so it can be looked up right away.
// An operation that already carries a transaction hash reserves it: adding a second one
// for the same hash fails with bridge.ErrAlreadyPolling until the first is terminal.
func (r *Registry) Add(op types.BridgeOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.ID]; exists {
		return errors.Wrapf(ErrExists, "id %s", op.ID)
	}
	if op.TxHash != (common.Hash{}) {
		if owner, busy := r.active[op.TxHash]; busy {
			return errors.Wrapf(bridge.ErrAlreadyPolling, "transaction %s is owned by operation %s", op.TxHash.Hex(), owner)
		}
		if !op.Status.IsTerminal() {
			r.active[op.TxHash] = op.ID
		}
	}
	r.ops[op.ID] = clone(op)
	if err := r.saveLocked(); err != nil {
		delete(r.ops, op.ID)
		if r.active[op.TxHash] == op.ID {
			delete(r.active, op.TxHash)
		}
		return err
	}
	return nil
}

// OnTransition stores the new state of an operation and tracks which transactions are
// being polled
func (r *Registry) OnTransition(op types.BridgeOperation, _ types.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops[op.ID] = clone(op)

	if op.TxHash != (common.Hash{}) {
		if op.Status.IsTerminal() {
			if r.active[op.TxHash] == op.ID {
				delete(r.active, op.TxHash)
			}
		} else if _, busy := r.active[op.TxHash]; !busy {
			r.active[op.TxHash] = op.ID
		}
	}

	r.pruneLocked()
	if err := r.saveLocked(); err != nil {
		log.Printf("[Registry] %v", err)
	}
}

// Polling returns the ID of the operation currently polling txHash
func (r *Registry) Polling(txHash common.Hash) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.active[txHash]
	return id, ok
}

// Get returns a copy of the operation with the given ID
func (r *Registry) Get(id string) (types.BridgeOperation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, exists := r.ops[id]
	if !exists {
		return types.BridgeOperation{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return *clone(*op), nil
}

// List returns copies of all operations, oldest first
func (r *Registry) List() []types.BridgeOperation {
	return r.filter(func(*types.BridgeOperation) bool { return true })
}

// Pending returns operations that were sent but never reached a terminal status
func (r *Registry) Pending() []types.BridgeOperation {
	return r.filter(func(op *types.BridgeOperation) bool {
		return op.TxHash != (common.Hash{}) && !op.Status.IsTerminal()
	})
}

func (r *Registry) filter(keep func(*types.BridgeOperation) bool) []types.BridgeOperation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]types.BridgeOperation, 0, len(r.ops))
	for _, op := range r.ops {
		if keep(op) {
			ops = append(ops, *clone(*op))
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].SubmittedAt.Equal(ops[j].SubmittedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].SubmittedAt.Before(ops[j].SubmittedAt)
	})
	return ops
}

// Delete removes an operation that is not being polled
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, exists := r.ops[id]
	if !exists {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if r.active[op.TxHash] == id {
		return errors.Wrapf(bridge.ErrAlreadyPolling, "operation %s", id)
	}

	delete(r.ops, id)
	return r.saveLocked()
}

// Count returns the number of operations held
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ops)
}

// FilePath returns the history file path, empty when in memory only
func (r *Registry) FilePath() string {
	return r.filePath
}

func (r *Registry) pruneLocked() {
	if r.retention <= 0 {
		return
	}

	cutoff := r.now().Add(-r.retention)
	for id, op := range r.ops {
		if !op.Status.IsTerminal() || len(op.History) == 0 {
			continue
		}
		if op.History[len(op.History)-1].At.Before(cutoff) {
			delete(r.ops, id)
		}
	}
}

func clone(op types.BridgeOperation) *types.BridgeOperation {
	op.History = append([]types.Transition(nil), op.History...)
	return &op
}
