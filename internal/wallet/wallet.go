// Package wallet implements the wallet core: address lifecycle, the
// transfer and fusion pipelines, synchronizer callbacks and an in-process
// event queue, all built on top of internal/transfers' output-tracking
// engine and internal/node's abstract chain client.
package wallet

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// State is the wallet's top-level lifecycle state.
type State int

const (
	StateNotInitialized State = iota
	StateInitialized
	StateDestroyed
)

// Mode is inferred from the first address created: a wallet that never
// learns a spend secret is TRACKING (view-only; transfers refused).
type Mode int

const (
	ModeUnset Mode = iota
	ModeNotTracking
	ModeTracking
)

var (
	ErrNotInitialized       = errors.New("wallet: not initialized")
	ErrAlreadyInitialized   = errors.New("wallet: already initialized")
	ErrDestroyed            = errors.New("wallet: destroyed")
	ErrAddressAlreadyExists = errors.New("wallet: address already exists")
	ErrBadAddress           = errors.New("wallet: address mode conflicts with wallet tracking mode")
	ErrUnknownAddress       = errors.New("wallet: address not tracked by this wallet")
	ErrTrackingMode         = errors.New("wallet: wallet is in tracking mode; spending operations are unavailable")
	ErrInsufficientFunds    = errors.New("wallet: insufficient unlocked funds")
	ErrZeroDestination      = errors.New("wallet: destination amount must be non-zero")
	ErrSumOverflow          = errors.New("wallet: amounts overflow u64")
	ErrFeeTooSmall          = errors.New("wallet: fee below the configured minimum")
	ErrMixinCountTooBig     = errors.New("wallet: node returned fewer mixin outputs than requested")
	ErrTxTooBig             = errors.New("wallet: serialized transaction exceeds the size limit")
	ErrOperationCancelled   = errors.New("wallet: operation cancelled")
	ErrFusionNotPossible    = errors.New("wallet: no fusion-eligible bucket of outputs")
	ErrUnsupportedVersion   = errors.New("wallet: unsupported snapshot version")
)

// WalletRecord is one subscribed address: its keys, its dedicated
// output-tracking container, and when it was created.
type WalletRecord struct {
	SpendPublic  crypto.Point
	SpendSecret  crypto.Scalar
	Tracking     bool // true if SpendSecret is not known
	Container    *transfers.Container
	CreationTime uint64

	// SpentOutputCache marks rows already claimed by an in-flight or
	// relayed-but-unconfirmed transfer, keyed by row id and valued by the
	// spending transaction's hash, so a second selection round can't
	// double-spend the same row before the engine itself confirms the
	// spend, and so the marker can be found and cleared again by hash if
	// that transaction is later dropped or fails to relay.
	SpentOutputCache map[uuid.UUID]crypto.Hash
}

// WalletTx is the wallet-level record of one transaction the wallet
// created, distinct from transfers.TxRecord (which the engine keeps per
// output-bearing transaction it observes).
type WalletTx struct {
	Hash         crypto.Hash
	State        transfers.TxState
	TotalAmount  int64
	Fee          uint64
	Extra        []byte
	IsFusion     bool
	ChangeAmount uint64
	UnlockTime   uint64
	BlockHeight  uint64
	Timestamp    uint64
}

// Wallet is the top-level handle; all exported methods are safe for
// concurrent use.
type Wallet struct {
	mu    sync.Mutex
	state State
	mode  Mode

	viewSecret crypto.Scalar
	viewPublic crypto.Point

	addresses    map[crypto.Point]*WalletRecord
	addressOrder []crypto.Point // first entry is the change address

	txs         map[crypto.Hash]*WalletTx
	fusionCache map[crypto.Hash]bool

	node node.Client
	sync Synchronizer

	transferMu sync.Mutex // at most one transfer/fusion in flight

	events   chan Event
	stopped  bool
	stopOnce sync.Once

	unlockJobs []unlockJob
}

type unlockJob struct {
	txHash      crypto.Hash
	unlockAt    uint64
	spendPublic crypto.Point
}

// New returns a fresh, NotInitialized wallet bound to client for node
// calls. eventQueueSize bounds the buffered event channel; 0 uses a
// reasonable default.
func New(client node.Client, eventQueueSize int) *Wallet {
	if eventQueueSize <= 0 {
		eventQueueSize = 256
	}
	return &Wallet{
		addresses:   make(map[crypto.Point]*WalletRecord),
		txs:         make(map[crypto.Hash]*WalletTx),
		fusionCache: make(map[crypto.Hash]bool),
		node:        client,
		events:      make(chan Event, eventQueueSize),
	}
}

// Initialize creates a fresh view keypair and moves the wallet to
// Initialized. password is accepted for interface symmetry with
// InitializeWithViewKey and is consumed by internal/vault at the
// persistence boundary, not stored in memory here.
func (w *Wallet) Initialize(password string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateDestroyed {
		return ErrDestroyed
	}
	if w.state == StateInitialized {
		return ErrAlreadyInitialized
	}

	keys := crypto.GenerateKeyPair()
	w.viewSecret = keys.Secret
	w.viewPublic = keys.Public
	w.state = StateInitialized
	return nil
}

// InitializeWithViewKey adopts an existing view key instead of generating
// one, for restoring a wallet from a backed-up secret.
func (w *Wallet) InitializeWithViewKey(viewSecret crypto.Scalar, password string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateDestroyed {
		return ErrDestroyed
	}
	if w.state == StateInitialized {
		return ErrAlreadyInitialized
	}

	pair := crypto.KeyPairFromSecret(viewSecret)
	w.viewSecret = pair.Secret
	w.viewPublic = pair.Public
	w.state = StateInitialized
	return nil
}

func (w *Wallet) requireInitializedLocked() error {
	switch w.state {
	case StateNotInitialized:
		return ErrNotInitialized
	case StateDestroyed:
		return ErrDestroyed
	default:
		return nil
	}
}

// ViewPublic returns the wallet's shared view public key.
func (w *Wallet) ViewPublic() (crypto.Point, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireInitializedLocked(); err != nil {
		return crypto.Point{}, err
	}
	return w.viewPublic, nil
}

// ChangeAddress returns the first address created, which change outputs
// from transfer() are always sent to.
func (w *Wallet) ChangeAddress() (crypto.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireInitializedLocked(); err != nil {
		return crypto.Address{}, err
	}
	if len(w.addressOrder) == 0 {
		return crypto.Address{}, ErrUnknownAddress
	}
	return crypto.Address{SpendPublic: w.addressOrder[0], ViewPublic: w.viewPublic}, nil
}

// TransactionCount reports how many wallet-level transactions are known.
func (w *Wallet) TransactionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.txs)
}

// TopHeight reports the highest confirmed height across every address's
// container, for synchronizer bookkeeping.
func (w *Wallet) TopHeight() uint64 {
	w.mu.Lock()
	records := make([]*WalletRecord, 0, len(w.addresses))
	for _, r := range w.addresses {
		records = append(records, r)
	}
	w.mu.Unlock()

	var top uint64
	for _, r := range records {
		if h := r.Container.CurrentHeight(); h > top {
			top = h
		}
	}
	return top
}
