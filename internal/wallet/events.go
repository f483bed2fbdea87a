package wallet

import (
	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// EventKind discriminates the handful of notifications the wallet pushes
// onto its event queue.
type EventKind int

const (
	EventSyncProgressUpdated EventKind = iota
	EventSyncCompleted
	EventBalanceUnlocked
	EventTransactionCreated
	EventTransactionUpdated
)

// Event is one queued notification. Processed/Total are populated only for
// EventSyncProgressUpdated; TxID only for the transaction events.
type Event struct {
	Kind      EventKind
	Processed uint64
	Total     uint64
	TxID      crypto.Hash
}

// pushEvent enqueues evt, dropping it rather than blocking if the queue is
// full and nobody is draining it — the teacher's Hub broadcast loop favors
// a bounded buffer over an unbounded backlog the same way.
func (w *Wallet) pushEvent(evt Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	// Stop() flips stopped and closes the channel under the same mutex, so
	// this send can never race the close.
	select {
	case w.events <- evt:
	default:
	}
}

// GetEvent blocks until an event is available or the wallet is stopped, in
// which case it returns ErrOperationCancelled.
func (w *Wallet) GetEvent() (Event, error) {
	evt, ok := <-w.events
	if !ok {
		return Event{}, ErrOperationCancelled
	}
	return evt, nil
}

// Stop unblocks any pending GetEvent call with ErrOperationCancelled and
// prevents further events from being queued. Safe to call more than once.
func (w *Wallet) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.events)
		w.mu.Unlock()
	})
}
