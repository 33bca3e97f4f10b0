package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/tradelayer/tradelayerd/global"
	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Engine is the per-block state-transition machine. Mutations are strictly
// sequential: one writer connects or disconnects blocks under the exclusive
// lock, readers share the committed state under the read lock and never
// observe a partially applied block.

var (
	// ErrPersistence is fatal: a block whose state was not durably written
	// must not be reported as connected
	ErrPersistence = errors.New("PersistenceFailure")
	// ErrNoSnapshot : disconnect without a retained snapshot is fatal
	ErrNoSnapshot = errors.New("no snapshot retained for rollback")
)

type (
	Engine struct {
		log    *zap.SugaredLogger
		params ledger.Params
		admin  ledger.Address
		kvs    state.KVStore

		mutex sync.RWMutex
		cur   *state.Store
		// previous committed states, oldest first, for reorg rollback
		snapshots *deque.Deque[*state.Store]
		retain    int

		pending []layertx.Decoded

		ignoredTx  atomic.Uint64
		rejectedTx atomic.Uint64
	}

	Option func(*Engine)
)

func WithSnapshotsRetained(n int) Option {
	return func(e *Engine) {
		e.retain = n
	}
}

// New starts from the latest persisted snapshot if one exists, otherwise
// from the empty pre-activation state at height 0
func New(env global.Logging, kvs state.KVStore, params ledger.Params, admin ledger.Address, opts ...Option) (*Engine, error) {
	ret := &Engine{
		log:       env.Log().Named("engine"),
		params:    params,
		admin:     admin,
		kvs:       kvs,
		snapshots: &deque.Deque[*state.Store]{},
		retain:    global.DefaultSnapshotsNum,
		pending:   make([]layertx.Decoded, 0),
	}
	for _, opt := range opts {
		opt(ret)
	}

	if _, ok := state.LatestSnapshotHeight(kvs); ok {
		s, err := state.LoadLatest(kvs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		ret.cur = s
		ret.log.Infof("resumed from persisted state at height %d, consensus hash %s", s.Height(), s.HashHex())
	} else {
		ret.cur = state.NewStore()
		ret.log.Infof("starting with empty state, network '%s'", params.Name)
	}
	return ret, nil
}

// Submit validates a command against the committed state and queues it for
// the next block. The validation error is surfaced to the caller; the final
// word still belongs to block connection
func (e *Engine) Submit(d layertx.Decoded) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	probe := e.cur.Clone()
	probe.SetHeight(e.cur.Height() + 1)
	if err := e.applyCommand(probe, d); err != nil {
		e.rejectedTx.Inc()
		return err
	}
	e.pending = append(e.pending, d)
	return nil
}

// DecodeAndSubmit is the boundary for raw carrier payloads
func (e *Engine) DecodeAndSubmit(sender, reference ledger.Address, payload []byte) error {
	cmd, err := layertx.DecodePayload(payload)
	if err != nil {
		e.ignoredTx.Inc()
		return err
	}
	return e.Submit(layertx.Decoded{Sender: sender, Reference: reference, Cmd: cmd})
}

// ConnectNext connects the next block from the pending queue
func (e *Engine) ConnectNext() (uint64, error) {
	e.mutex.Lock()
	txs := e.pending
	e.pending = make([]layertx.Decoded, 0)
	h := e.cur.Height() + 1
	e.mutex.Unlock()

	if err := e.ConnectBlock(h, txs); err != nil {
		return 0, err
	}
	return h, nil
}

// ConnectBlock applies one block: expiry sweep, ordered commands, vesting
// pass, hash fold, durable persist. Blocks connect one at a time in height
// order; the carrier-presented transaction order is the canonical one
func (e *Engine) ConnectBlock(height uint64, txs []layertx.Decoded) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if height != e.cur.Height()+1 {
		return fmt.Errorf("ConnectBlock: expected height %d, got %d", e.cur.Height()+1, height)
	}

	prev := e.cur
	next := e.cur.Clone()
	next.SetHeight(height)

	e.sweepExpired(next)
	if height == e.params.VestingActivationBlock {
		e.activateLayer(next)
	}

	for i := range txs {
		if err := e.applyCommand(next, txs[i]); err != nil {
			// invalid commands discovered during replay are skipped,
			// never applied partially
			e.rejectedTx.Inc()
			e.log.Debugf("block %d: tx %d skipped: %v", height, i, err)
		}
	}

	e.vestingPass(next)
	next.FoldHash()

	if err := state.SaveSnapshot(e.kvs, next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	e.snapshots.PushBack(prev)
	for e.snapshots.Len() > e.retain {
		dropped := e.snapshots.PopFront()
		_ = state.PruneSnapshot(e.kvs, dropped.Height())
	}
	e.cur = next
	return nil
}

// DisconnectBlock atomically restores the immediately prior snapshot
// (chain reorg). Running out of retained snapshots is fatal to the node
func (e *Engine) DisconnectBlock() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.snapshots.Len() == 0 {
		return ErrNoSnapshot
	}
	prev := e.snapshots.PopBack()
	if err := state.SaveSnapshot(e.kvs, prev); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	e.log.Infof("disconnected block %d, back to height %d", e.cur.Height(), prev.Height())
	e.cur = prev
	return nil
}

// activateLayer installs the implied constant properties and the vesting
// property, crediting the admin address
func (e *Engine) activateLayer(s *state.Store) {
	util.Assertf(!s.HasProperty(ledger.PropertyALL), "layer already activated")

	// ALL and sLTC are implied constants with fixed ids 1 and 2. The ALL
	// total includes the vesting reserve so that supply stays conserved
	// across the unvested bucket
	s.PutImpliedProperty(&state.Property{
		ID:          ledger.PropertyALL,
		Issuer:      e.admin,
		Divisible:   true,
		Category:    "N/A",
		Subcategory: "N/A",
		Name:        "ALL",
		Total:       e.params.NativeSupply + e.params.VestingSupply,
		KYCAllowed:  []uint64{0},
	})
	s.PutImpliedProperty(&state.Property{
		ID:          ledger.PropertySLTC,
		Issuer:      e.admin,
		Divisible:   true,
		Category:    "N/A",
		Subcategory: "N/A",
		Name:        "sLTC",
		Total:       e.params.NativeSupply,
		KYCAllowed:  []uint64{0},
	})
	vesting := &state.Property{
		Issuer:        e.admin,
		Divisible:     true,
		Category:      "N/A",
		Subcategory:   "N/A",
		Name:          "Vesting Tokens",
		Data:          "Divisible Tokens",
		URL:           "www.tradelayer.org",
		Total:         e.params.VestingSupply,
		KYCAllowed:    []uint64{},
		CreationBlock: s.Height(),
	}
	id := s.PutProperty(vesting)
	util.Assertf(id == ledger.PropertyVesting, "vesting property must get id %d", ledger.PropertyVesting)

	s.Credit(e.admin, ledger.PropertyALL, e.params.NativeSupply, state.BucketAvailable)
	s.Credit(e.admin, ledger.PropertySLTC, e.params.NativeSupply, state.BucketAvailable)

	// the whole vesting supply starts with the admin: vesting tokens plus
	// the matching unvested ALL entitlement
	s.Credit(e.admin, ledger.PropertyVesting, e.params.VestingSupply, state.BucketAvailable)
	s.Credit(e.admin, ledger.PropertyALL, e.params.VestingSupply, state.BucketUnvested)

	e.log.Infof("layer activated at block %d: properties %d..%d, admin %s",
		s.Height(), ledger.PropertyALL, ledger.PropertyVesting, e.admin)
	e.log.Debugf("state after activation:\n%s", s.Lines("     ").String())
}

func (e *Engine) Network() string {
	return e.params.Name
}

// SubmitIssuance queues the issuance and reports the property id it will be
// assigned when the next block connects. Issuances already pending claim
// lower ids first
func (e *Engine) SubmitIssuance(d layertx.Decoded) (ledger.PropertyID, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	probe := e.cur.Clone()
	probe.SetHeight(e.cur.Height() + 1)
	for i := range e.pending {
		_ = e.applyCommand(probe, e.pending[i])
	}
	id := probe.NextPropertyID()
	if err := e.applyCommand(probe, d); err != nil {
		e.rejectedTx.Inc()
		return 0, err
	}
	e.pending = append(e.pending, d)
	return id, nil
}

func (e *Engine) IgnoredTxCount() uint64 {
	return e.ignoredTx.Load()
}

func (e *Engine) RejectedTxCount() uint64 {
	return e.rejectedTx.Load()
}
