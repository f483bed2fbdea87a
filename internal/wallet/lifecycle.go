package wallet

import (
	"github.com/google/uuid"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// Synchronizer is the minimal subset of the block-sync component the
// wallet needs to drive around address subscription changes: stopping and
// restarting the walk, and subscribing/unsubscribing one address. The
// concrete synchronizer (which drives Wallet via OnSynchronizationProgress
// etc., see sync.go) is out of this package's scope to construct; callers
// wire one in.
type Synchronizer interface {
	Stop()
	Start()
	Subscribe(addr crypto.Address, syncStart uint64)
	Unsubscribe(addr crypto.Address)
}

// SetSynchronizer attaches the synchronizer address lifecycle operations
// drive. Must be called before the first CreateAddress.
func (w *Wallet) SetSynchronizer(s Synchronizer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sync = s
}

func (w *Wallet) createAddressLocked(spendPublic crypto.Point, spendSecret crypto.Scalar, tracking bool, creationTime, syncGrace uint64) (crypto.Address, error) {
	if err := w.requireInitializedLocked(); err != nil {
		return crypto.Address{}, err
	}
	// Point wraps a pointer, so an equal key computed separately is not the
	// same map key; compare by value instead.
	for pub := range w.addresses {
		if pub.Equal(spendPublic) {
			return crypto.Address{}, ErrAddressAlreadyExists
		}
	}

	switch w.mode {
	case ModeUnset:
		if tracking {
			w.mode = ModeTracking
		} else {
			w.mode = ModeNotTracking
		}
	case ModeTracking:
		if !tracking {
			return crypto.Address{}, ErrBadAddress
		}
	case ModeNotTracking:
		if tracking {
			return crypto.Address{}, ErrBadAddress
		}
	}

	if w.sync != nil && len(w.addresses) > 0 {
		w.sync.Stop()
	}

	rec := &WalletRecord{
		SpendPublic:      spendPublic,
		SpendSecret:      spendSecret,
		Tracking:         tracking,
		Container:        transfers.NewContainer(),
		CreationTime:     creationTime,
		SpentOutputCache: make(map[uuid.UUID]crypto.Hash),
	}
	w.addresses[spendPublic] = rec
	w.addressOrder = append(w.addressOrder, spendPublic)

	addr := crypto.Address{SpendPublic: spendPublic, ViewPublic: w.viewPublic}
	if w.sync != nil {
		syncStart := creationTime
		if syncStart > syncGrace {
			syncStart -= syncGrace
		} else {
			syncStart = 0
		}
		w.sync.Subscribe(addr, syncStart)
		w.sync.Start()
	}
	return addr, nil
}

// CreateAddress generates a fresh spend keypair and subscribes it.
func (w *Wallet) CreateAddress(creationTime, syncGrace uint64) (crypto.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := crypto.GenerateKeyPair()
	return w.createAddressLocked(keys.Public, keys.Secret, false, creationTime, syncGrace)
}

// CreateAddressFromSecret subscribes an address recovered from a known
// spend secret.
func (w *Wallet) CreateAddressFromSecret(spendSecret crypto.Scalar, creationTime, syncGrace uint64) (crypto.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pair := crypto.KeyPairFromSecret(spendSecret)
	return w.createAddressLocked(pair.Public, spendSecret, false, creationTime, syncGrace)
}

// CreateAddressFromPublic subscribes a tracking (view-only) address: no
// spend secret is ever known, so transfer()/createFusionTransaction() on
// this wallet will fail once mode settles on TRACKING.
func (w *Wallet) CreateAddressFromPublic(spendPublic crypto.Point, creationTime, syncGrace uint64) (crypto.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createAddressLocked(spendPublic, crypto.Scalar{}, true, creationTime, syncGrace)
}

// DeleteAddress stops the synchronizer, removes addr's subscription and
// every row its container holds, decrements no separately-cached balance
// (balances are always derived live from the remaining containers), and
// restarts the synchronizer.
func (w *Wallet) DeleteAddress(addr crypto.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireInitializedLocked(); err != nil {
		return err
	}
	if _, ok := w.addresses[addr.SpendPublic]; !ok {
		return ErrUnknownAddress
	}

	if w.sync != nil {
		w.sync.Stop()
		w.sync.Unsubscribe(addr)
	}

	delete(w.addresses, addr.SpendPublic)
	for i, pub := range w.addressOrder {
		if pub == addr.SpendPublic {
			w.addressOrder = append(w.addressOrder[:i], w.addressOrder[i+1:]...)
			break
		}
	}

	if w.sync != nil {
		w.sync.Start()
	}
	return nil
}

// IsTracking reports whether the wallet is in view-only mode.
func (w *Wallet) IsTracking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode == ModeTracking
}

// requireNotTrackingLocked fails spending operations on a view-only wallet.
func (w *Wallet) requireNotTrackingLocked() error {
	if w.mode == ModeTracking {
		return ErrTrackingMode
	}
	return nil
}

// addressRecordsLocked returns every tracked record, or just addr's if addr
// is non-nil.
func (w *Wallet) addressRecordsLocked(addr *crypto.Address) ([]*WalletRecord, error) {
	if addr == nil {
		out := make([]*WalletRecord, 0, len(w.addressOrder))
		for _, pub := range w.addressOrder {
			out = append(out, w.addresses[pub])
		}
		return out, nil
	}
	rec, ok := w.addresses[addr.SpendPublic]
	if !ok {
		return nil, ErrUnknownAddress
	}
	return []*WalletRecord{rec}, nil
}
