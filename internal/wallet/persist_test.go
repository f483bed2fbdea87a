package wallet

import (
	"bytes"
	"testing"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

func TestSaveLoadRoundTripPreservesAddressesAndBalances(t *testing.T) {
	w := newTestWallet(t)
	spendSecret := crypto.RandomScalar()
	addr, err := w.CreateAddressFromSecret(spendSecret, 0, 0)
	if err != nil {
		t.Fatalf("CreateAddressFromSecret: %v", err)
	}

	rec := w.addresses[addr.SpendPublic]
	seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 5000, 1, 10)

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New(&node.Mock{}, 4)
	if err := restored.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if restored.state != StateInitialized {
		t.Fatalf("restored.state = %v, want Initialized", restored.state)
	}
	if !restored.viewPublic.Equal(w.viewPublic) {
		t.Fatalf("restored view public key does not match original")
	}
	// A Point decoded through gob is a distinct value from the one
	// CreateAddressFromSecret returned, so find the restored record by
	// Equal rather than by re-using addr.SpendPublic as a map key.
	var restoredRec *WalletRecord
	for pub, rec := range restored.addresses {
		if pub.Equal(addr.SpendPublic) {
			restoredRec = rec
			break
		}
	}
	if restoredRec == nil {
		t.Fatalf("restored wallet is missing address %v", addr.SpendPublic)
	}
	if got, want := restoredRec.Container.Balance(transfers.AllFlags(), 1000), uint64(5000); got != want {
		t.Fatalf("restored balance = %d, want %d", got, want)
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	w := newTestWallet(t)
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	corrupted := append([]byte{0xFF, 0xFF, 0xFF}, buf.Bytes()...)

	restored := New(&node.Mock{}, 4)
	if err := restored.Load(bytes.NewReader(corrupted)); err == nil {
		t.Fatalf("Load of corrupted snapshot succeeded, want an error")
	}
}
