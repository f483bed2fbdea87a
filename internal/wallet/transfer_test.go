package wallet

import (
	"context"
	"testing"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// seedOwnedOutput inserts a confirmed, unlocked key output belonging to addr
// into container, with a key and key image properly derived so the
// transfer pipeline's AddKeyInput validation (ephemeral public must match
// the real output's target key) succeeds. The output is confirmed at height,
// or at the container's current height if that is higher: the engine
// refuses a confirmed block below its current height, and every seeded
// output advances that height past its own block.
func seedOwnedOutput(t *testing.T, container *transfers.Container, addr crypto.Address, spendSecret crypto.Scalar, amount uint64, globalIndex uint32, height uint64) {
	t.Helper()

	senderKeys := crypto.GenerateKeyPair()
	derivation := crypto.GenerateKeyDerivation(addr.ViewPublic, senderKeys.Secret)
	outputKey := crypto.DerivePublicKey(derivation, 0, addr.SpendPublic)
	ephemeralSecret := crypto.DeriveSecretKey(derivation, 0, spendSecret)
	keyImage := crypto.GenerateKeyImage(outputKey, ephemeralSecret)

	txHash := crypto.Keccak256(outputKey.Bytes(), senderKeys.Public.Bytes())
	if current := container.CurrentHeight(); current > height {
		height = current
	}
	block := transfers.BlockInfo{Height: height}
	_, err := container.AddTransaction(block, txHash, nil, []transfers.NewOutput{{
		Type:              transfers.OutputTypeKey,
		Amount:            amount,
		OutputKey:         outputKey,
		KeyImage:          keyImage,
		TxPublicKey:       senderKeys.Public,
		GlobalOutputIndex: globalIndex,
	}})
	if err != nil {
		t.Fatalf("seedOwnedOutput: AddTransaction: %v", err)
	}
	container.AdvanceHeight(height + transfers.DefaultSpendableAge)
}

func decoyOutput(index uint32) txmodel.GlobalOutput {
	return txmodel.GlobalOutput{Index: index, TargetKey: crypto.ScalarBaseMult(crypto.RandomScalar())}
}

func TestTransferSpendsSelectedOutputsAndRelays(t *testing.T) {
	mock := &node.Mock{
		GetRandomOutsByAmountsFn: func(ctx context.Context, amounts []uint64, mixin int) ([]node.AmountOutputs, error) {
			outs := make([]txmodel.GlobalOutput, 0, mixin)
			for i := 0; i < mixin; i++ {
				outs = append(outs, decoyOutput(uint32(100+i)))
			}
			return []node.AmountOutputs{{Amount: amounts[0], Outputs: outs}}, nil
		},
	}
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
	seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 5000, 1, 10)
	seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 5000, 2, 10)

	dest := crypto.Address{
		SpendPublic: crypto.ScalarBaseMult(crypto.RandomScalar()),
		ViewPublic:  crypto.ScalarBaseMult(crypto.RandomScalar()),
	}

	txHash, err := w.Transfer(context.Background(), TransferParams{
		Destinations: []Destination{{Address: dest, Amount: 3000}},
		Fee:          100,
		Mixin:        2,
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(mock.Relayed) != 1 {
		t.Fatalf("Relayed = %d transactions, want 1", len(mock.Relayed))
	}
	if mock.Relayed[0].Hash() != txHash {
		t.Fatalf("relayed transaction hash = %v, want %v", mock.Relayed[0].Hash(), txHash)
	}

	w.mu.Lock()
	wtx, ok := w.txs[txHash]
	w.mu.Unlock()
	if !ok {
		t.Fatalf("wallet has no record for %v", txHash)
	}
	if wtx.State != transfers.TxSucceeded {
		t.Fatalf("wtx.State = %v, want TxSucceeded", wtx.State)
	}
	if wtx.ChangeAmount != 1900 {
		t.Fatalf("wtx.ChangeAmount = %d, want 1900", wtx.ChangeAmount)
	}

	var reserved int
	for _, txHashSpent := range rec.SpentOutputCache {
		if txHashSpent == txHash {
			reserved++
		}
	}
	if reserved == 0 {
		t.Fatalf("no row reserved against the relayed transaction's hash")
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.CreateAddress(0, 0)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	w.mu.Lock()
	rec := w.addresses[addr.SpendPublic]
	w.mu.Unlock()
	seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 1500, 1, 10)

	dest := crypto.Address{SpendPublic: crypto.ScalarBaseMult(crypto.RandomScalar())}
	_, err = w.Transfer(context.Background(), TransferParams{
		Destinations: []Destination{{Address: dest, Amount: 10000}},
		Fee:          1,
	})
	if err != ErrInsufficientFunds {
		t.Fatalf("Transfer = %v, want ErrInsufficientFunds", err)
	}
	if len(rec.SpentOutputCache) != 0 {
		t.Fatalf("SpentOutputCache = %v, want empty after a failed selection", rec.SpentOutputCache)
	}
}

func TestTransferRejectsFeeBelowMinimum(t *testing.T) {
	w := newTestWallet(t)
	if _, err := w.CreateAddress(0, 0); err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	dest := crypto.Address{SpendPublic: crypto.ScalarBaseMult(crypto.RandomScalar())}
	_, err := w.Transfer(context.Background(), TransferParams{
		Destinations: []Destination{{Address: dest, Amount: 10}},
		Fee:          0,
	})
	if err != ErrFeeTooSmall {
		t.Fatalf("Transfer = %v, want ErrFeeTooSmall", err)
	}
}

func TestTransferRejectedByNodeUnmarksReservation(t *testing.T) {
	mock := &node.Mock{
		RelayTransactionFn: func(ctx context.Context, tx txmodel.Transaction) (node.RelayStatus, error) {
			return node.RelayRejected, nil
		},
	}
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
	seedOwnedOutput(t, rec.Container, addr, rec.SpendSecret, 5000, 1, 10)

	dest := crypto.Address{SpendPublic: crypto.ScalarBaseMult(crypto.RandomScalar())}
	_, err = w.Transfer(context.Background(), TransferParams{
		Destinations: []Destination{{Address: dest, Amount: 1000}},
		Fee:          1,
		Mixin:        0,
	})
	if err == nil {
		t.Fatalf("Transfer succeeded despite node rejection")
	}
	if len(rec.SpentOutputCache) != 0 {
		t.Fatalf("SpentOutputCache = %v, want empty after a rejected relay", rec.SpentOutputCache)
	}
}

func TestValidateTransferParamsRejectsZeroDestination(t *testing.T) {
	err := validateTransferParams(TransferParams{Destinations: []Destination{{Amount: 0}}})
	if err == nil {
		t.Fatalf("validateTransferParams accepted a zero-amount destination")
	}
}
