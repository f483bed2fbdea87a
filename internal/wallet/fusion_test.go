package wallet

import (
	"context"
	"testing"

	"github.com/rawblock/cryptonote-core/internal/node"
)

func TestCreateFusionTransactionCombinesSameMagnitudeOutputs(t *testing.T) {
	mock := &node.Mock{}
	w := New(mock, 8)
	if err := w.Initialize("password"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	addr, err := w.CreateAddress(0, 0)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	w.mu.Lock()
	rec := w.addresses[addr.SpendPublic]
	w.mu.Unlock()

	const count = FusionTxMinInputCount
	for i := 0; i < count; i++ {
		seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 2000, uint32(i+1), 10)
	}

	txHash, err := w.CreateFusionTransaction(context.Background(), 5000, 0)
	if err != nil {
		t.Fatalf("CreateFusionTransaction: %v", err)
	}
	if len(mock.Relayed) != 1 {
		t.Fatalf("Relayed = %d, want 1", len(mock.Relayed))
	}
	if mock.Relayed[0].Hash() != txHash {
		t.Fatalf("relayed hash = %v, want %v", mock.Relayed[0].Hash(), txHash)
	}

	w.mu.Lock()
	wtx := w.txs[txHash]
	isFusion := w.fusionCache[txHash]
	w.mu.Unlock()
	if wtx == nil || !wtx.IsFusion {
		t.Fatalf("wtx.IsFusion = %v, want true", wtx)
	}
	if !isFusion {
		t.Fatalf("fusionCache missing entry for %v", txHash)
	}
	if wtx.Fee != 0 {
		t.Fatalf("fusion transaction Fee = %d, want 0", wtx.Fee)
	}
}

func TestCreateFusionTransactionNotEnoughOutputs(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.CreateAddress(0, 0)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	w.mu.Lock()
	rec := w.addresses[addr.SpendPublic]
	w.mu.Unlock()

	for i := 0; i < FusionTxMinInputCount-1; i++ {
		seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 2000, uint32(i+1), 10)
	}

	_, err = w.CreateFusionTransaction(context.Background(), 5000, 0)
	if err != ErrFusionNotPossible {
		t.Fatalf("CreateFusionTransaction = %v, want ErrFusionNotPossible", err)
	}
}

func TestIsFusionTransactionShape(t *testing.T) {
	if !IsFusionTransaction(0, 24000, 24000, 2) {
		t.Fatalf("expected zero-fee balanced transaction to be recognized as fusion")
	}
	if IsFusionTransaction(100, 24000, 23900, 2) {
		t.Fatalf("a transaction with a nonzero fee must not be recognized as fusion")
	}
	if IsFusionTransaction(0, 24000, 24000, MaxFusionOutputCount+1) {
		t.Fatalf("a transaction exceeding the fusion output bound must not be recognized as fusion")
	}
}

func TestMagnitudeGroupsByLeadingDigitScale(t *testing.T) {
	cases := []struct {
		amount uint64
		want   int
	}{
		{0, 0},
		{5, 0},
		{50, 1},
		{2000, 3},
		{7000, 3},
	}
	for _, c := range cases {
		if got := magnitude(c.amount); got != c.want {
			t.Fatalf("magnitude(%d) = %d, want %d", c.amount, got, c.want)
		}
	}
}
