package wallet

import (
	"testing"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

func drainEvents(w *Wallet) []Event {
	var out []Event
	for {
		select {
		case evt := <-w.events:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestOnSynchronizationProgressUpdatedUnlocksDueJobs(t *testing.T) {
	w := New(&node.Mock{}, 8)
	w.unlockJobs = []unlockJob{
		{txHash: crypto.Hash{0x01}, unlockAt: 50},
		{txHash: crypto.Hash{0x02}, unlockAt: 200},
	}

	w.OnSynchronizationProgressUpdated(100, 1000)

	if len(w.unlockJobs) != 1 || w.unlockJobs[0].unlockAt != 200 {
		t.Fatalf("unlockJobs = %+v, want only the not-yet-due job remaining", w.unlockJobs)
	}

	events := drainEvents(w)
	var sawProgress, sawUnlocked bool
	for _, e := range events {
		switch e.Kind {
		case EventSyncProgressUpdated:
			sawProgress = true
		case EventBalanceUnlocked:
			sawUnlocked = true
		}
	}
	if !sawProgress || !sawUnlocked {
		t.Fatalf("events = %+v, want both SyncProgressUpdated and BalanceUnlocked", events)
	}
}

func TestOnSynchronizationProgressUpdatedNoDueJobsNoUnlockEvent(t *testing.T) {
	w := New(&node.Mock{}, 8)
	w.unlockJobs = []unlockJob{{txHash: crypto.Hash{0x01}, unlockAt: 500}}

	w.OnSynchronizationProgressUpdated(100, 1000)

	for _, e := range drainEvents(w) {
		if e.Kind == EventBalanceUnlocked {
			t.Fatalf("unexpected BalanceUnlocked event with no due jobs")
		}
	}
}

func TestOnTransactionUpdatedInsertsNewTransaction(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.CreateAddress(0, 0)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	w.mu.Lock()
	rec := w.addresses[addr.SpendPublic]
	w.mu.Unlock()

	senderKeys := crypto.GenerateKeyPair()
	derivation := crypto.GenerateKeyDerivation(addr.ViewPublic, senderKeys.Secret)
	outputKey := crypto.DerivePublicKey(derivation, 0, addr.SpendPublic)
	txHash := crypto.Keccak256(outputKey.Bytes())
	block := transfers.BlockInfo{Height: 50, Timestamp: 111}

	if _, err := rec.Container.AddTransaction(block, txHash, nil, []transfers.NewOutput{{
		Type:              transfers.OutputTypeKey,
		Amount:            7000,
		OutputKey:         outputKey,
		TxPublicKey:       senderKeys.Public,
		GlobalOutputIndex: 9,
	}}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if err := w.OnTransactionUpdated(addr, txHash, block); err != nil {
		t.Fatalf("OnTransactionUpdated: %v", err)
	}

	w.mu.Lock()
	wtx, ok := w.txs[txHash]
	w.mu.Unlock()
	if !ok {
		t.Fatalf("wallet has no record for %v", txHash)
	}
	if wtx.TotalAmount != 7000 {
		t.Fatalf("wtx.TotalAmount = %d, want 7000", wtx.TotalAmount)
	}
	if wtx.State != transfers.TxSucceeded {
		t.Fatalf("wtx.State = %v, want TxSucceeded", wtx.State)
	}

	found := false
	for _, e := range drainEvents(w) {
		if e.Kind == EventTransactionCreated && e.TxID == txHash {
			found = true
		}
	}
	if !found {
		t.Fatalf("no EventTransactionCreated observed for %v", txHash)
	}

	w.mu.Lock()
	jobCount := len(w.unlockJobs)
	w.mu.Unlock()
	if jobCount != 1 {
		t.Fatalf("unlockJobs = %d, want 1 scheduled for the newly confirmed output", jobCount)
	}
}

func TestOnTransactionUpdatedUnknownAddress(t *testing.T) {
	w := newTestWallet(t)
	unknown := crypto.Address{SpendPublic: crypto.ScalarBaseMult(crypto.RandomScalar())}
	if err := w.OnTransactionUpdated(unknown, crypto.Hash{}, transfers.BlockInfo{}); err != ErrUnknownAddress {
		t.Fatalf("OnTransactionUpdated(unknown) = %v, want ErrUnknownAddress", err)
	}
}

func TestOnTransactionDeletedCancelsPendingRecord(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.CreateAddress(0, 0)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	w.mu.Lock()
	rec := w.addresses[addr.SpendPublic]
	w.mu.Unlock()

	senderKeys := crypto.GenerateKeyPair()
	derivation := crypto.GenerateKeyDerivation(addr.ViewPublic, senderKeys.Secret)
	outputKey := crypto.DerivePublicKey(derivation, 0, addr.SpendPublic)
	txHash := crypto.Keccak256(outputKey.Bytes())
	block := transfers.BlockInfo{Height: transfers.UnconfirmedHeightSentinel}

	if _, err := rec.Container.AddTransaction(block, txHash, nil, []transfers.NewOutput{{
		Type:        transfers.OutputTypeKey,
		Amount:      1000,
		OutputKey:   outputKey,
		TxPublicKey: senderKeys.Public,
	}}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	w.mu.Lock()
	w.txs[txHash] = &WalletTx{Hash: txHash, State: transfers.TxSending}
	w.unlockJobs = []unlockJob{{txHash: txHash, unlockAt: 10}}
	w.mu.Unlock()

	if err := rec.Container.DeleteUnconfirmedTransaction(txHash); err != nil {
		t.Fatalf("DeleteUnconfirmedTransaction: %v", err)
	}
	if err := w.OnTransactionDeleted(addr, txHash); err != nil {
		t.Fatalf("OnTransactionDeleted: %v", err)
	}

	w.mu.Lock()
	wtx := w.txs[txHash]
	jobCount := len(w.unlockJobs)
	w.mu.Unlock()
	if wtx.State != transfers.TxCancelled {
		t.Fatalf("wtx.State = %v, want TxCancelled", wtx.State)
	}
	if wtx.BlockHeight != transfers.UnconfirmedHeightSentinel {
		t.Fatalf("wtx.BlockHeight = %d, want the unconfirmed sentinel", wtx.BlockHeight)
	}
	if jobCount != 0 {
		t.Fatalf("unlockJobs = %d, want 0 after deleting the only job's transaction", jobCount)
	}
}
