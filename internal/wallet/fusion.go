package wallet

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// MaxFusionOutputCount bounds how many decomposed outputs a fusion
// transaction produces, regardless of how large its combined input amount
// is.
const MaxFusionOutputCount = 4

// FusionTxMaxSize is the serialized-size ceiling a fusion transaction must
// fit under; exceeding it drops the largest input and retries.
const FusionTxMaxSize = 1 << 15

// FusionTxMinInputCount is the smallest input set worth fusing; below this
// the retry loop gives up.
const FusionTxMinInputCount = 12

// approximateMaxInputCount estimates how many ring-signed inputs fit
// alongside outputCount outputs within txSize bytes at the given mixin:
// per-input overhead plus one 64-byte (challenge, response) pair per ring
// member, against the wire format Serialize emits.
func approximateMaxInputCount(txSize, outputCount, mixin int) int {
	perInput := 8 + (mixin+1)*64
	available := txSize - 64 - outputCount*40
	if available <= 0 || perInput <= 0 {
		return 0
	}
	return available / perInput
}

// magnitude buckets an amount by the power of ten of its leading digit
// (1000 and 7000 share a magnitude; 100 does not), so a fusion round only
// ever combines outputs of comparable size.
func magnitude(a uint64) int {
	m := 0
	for a >= 10 {
		a /= 10
		m++
	}
	return m
}

// CreateFusionTransaction packs many small same-magnitude outputs into
// fewer, larger ones at zero fee.
func (w *Wallet) CreateFusionTransaction(ctx context.Context, threshold uint64, mixin int) (crypto.Hash, error) {
	w.transferMu.Lock()
	defer w.transferMu.Unlock()

	w.mu.Lock()
	if err := w.requireInitializedLocked(); err != nil {
		w.mu.Unlock()
		return crypto.Hash{}, err
	}
	if err := w.requireNotTrackingLocked(); err != nil {
		w.mu.Unlock()
		return crypto.Hash{}, err
	}
	hasAddress := len(w.addressOrder) > 0
	w.mu.Unlock()

	if threshold <= DustThreshold || !hasAddress {
		return crypto.Hash{}, fmt.Errorf("wallet: fusion threshold must exceed the dust threshold and at least one address must exist")
	}

	maxInputs := approximateMaxInputCount(FusionTxMaxSize, MaxFusionOutputCount, mixin)
	if maxInputs < FusionTxMinInputCount {
		return crypto.Hash{}, ErrMixinCountTooBig
	}

	selected, err := w.selectFusionBucket(threshold, maxInputs)
	if err != nil {
		return crypto.Hash{}, err
	}

	var totalSelected uint64
	for _, s := range selected {
		totalSelected += s.row.Amount
	}

	changeAddr, err := w.ChangeAddress()
	if err != nil {
		return crypto.Hash{}, err
	}

	for len(selected) >= FusionTxMinInputCount {
		infos, accounts, err := w.prepareInputs(ctx, selected, mixin)
		if err != nil {
			return crypto.Hash{}, err
		}

		built, err := buildFusionTransaction(infos, accounts, changeAddr, totalSelected)
		if err != nil {
			return crypto.Hash{}, err
		}

		if len(built.Serialize()) <= FusionTxMaxSize {
			txHash := built.Hash()
			w.markSpentCache(selected, txHash)
			w.insertPendingTx(txHash, 0, 0, built.Extra, 0, 0)

			status, relayErr := w.node.RelayTransaction(ctx, built)
			if relayErr != nil || status != node.RelayAccepted {
				w.unmarkSpentCache(selected)
				w.pushEvent(Event{Kind: EventTransactionCreated, TxID: txHash})
				if relayErr != nil {
					return crypto.Hash{}, fmt.Errorf("wallet: relay fusion transaction: %w", relayErr)
				}
				return crypto.Hash{}, fmt.Errorf("wallet: node rejected fusion transaction")
			}

			w.commitTx(txHash, 0, true)
			w.pushEvent(Event{Kind: EventTransactionCreated, TxID: txHash})
			return txHash, nil
		}

		// Drop the largest remaining input and retry; selected is kept
		// sorted ascending by amount so the last element is the largest.
		dropped := selected[len(selected)-1]
		totalSelected -= dropped.row.Amount
		selected = selected[:len(selected)-1]
	}

	return crypto.Hash{}, ErrFusionNotPossible
}

func (w *Wallet) selectFusionBucket(threshold uint64, maxInputs int) ([]selectedInput, error) {
	w.mu.Lock()
	records, err := w.addressRecordsLocked(nil)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	flags := transfers.Flags{IncludeTypeKey: true, IncludeStateUnlocked: true}
	buckets := make(map[int][]selectedInput)
	for _, rec := range records {
		for _, r := range rec.Container.GetOutputs(flags, 0) {
			if r.Amount > threshold {
				continue
			}
			if _, spent := rec.SpentOutputCache[r.ID]; spent {
				continue
			}
			m := magnitude(r.Amount)
			buckets[m] = append(buckets[m], selectedInput{record: rec, row: r})
		}
	}

	var eligible [][]selectedInput
	for _, bucket := range buckets {
		if len(bucket) >= FusionTxMinInputCount {
			eligible = append(eligible, bucket)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrFusionNotPossible
	}
	chosen := eligible[rand.Intn(len(eligible))]

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].row.Amount < chosen[j].row.Amount })
	if len(chosen) > maxInputs {
		// Sample maxInputs entries uniformly, then re-sort ascending so the
		// drop-largest retry loop in CreateFusionTransaction stays correct.
		rand.Shuffle(len(chosen), func(i, j int) { chosen[i], chosen[j] = chosen[j], chosen[i] })
		chosen = chosen[:maxInputs]
		sort.Slice(chosen, func(i, j int) bool { return chosen[i].row.Amount < chosen[j].row.Amount })
	}
	return chosen, nil
}

// IsFusionTransaction reports whether a fee, amount-in, amount-out and
// output count combination matches the fusion shape: no fee, amounts that
// net to zero, and an output count within the fusion bound. Used to
// recognize a received transaction as fusion without having built it.
func IsFusionTransaction(fee, amountIn, amountOut uint64, outputCount int) bool {
	return fee == 0 && amountIn == amountOut && outputCount <= MaxFusionOutputCount
}

// buildFusionTransaction builds a zero-fee transaction spending infos and
// decomposing totalAmount into at most MaxFusionOutputCount outputs paid
// to changeAddr.
func buildFusionTransaction(infos []txmodel.InputKeyInfo, accounts []crypto.AccountKeys, changeAddr crypto.Address, totalAmount uint64) (txmodel.Transaction, error) {
	b := txmodel.NewBuilder(TxVersion, 0)

	if err := addDecomposedOutputs(b, totalAmount, changeAddr); err != nil {
		return txmodel.Transaction{}, err
	}
	if b.OutputCount() > MaxFusionOutputCount {
		return txmodel.Transaction{}, fmt.Errorf("wallet: fusion decomposition produced %d outputs, want at most %d", b.OutputCount(), MaxFusionOutputCount)
	}

	for i, info := range infos {
		if _, err := b.AddKeyInput(accounts[i], info); err != nil {
			return txmodel.Transaction{}, fmt.Errorf("wallet: preparing fusion input %d: %w", i, err)
		}
	}

	return b.Sign()
}
