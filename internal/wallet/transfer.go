package wallet

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/amount"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/extra"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
	"github.com/rawblock/cryptonote-core/internal/decoymatch"
	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// TxVersion is the only transaction format version this core emits.
const TxVersion = 1

// DustThreshold is the decomposition boundary below which an amount chunk
// is folded into a single dust output rather than emitted on its own.
const DustThreshold = 1000

// UpperTransactionSizeLimit bounds a relayed transaction's serialized size.
const UpperTransactionSizeLimit = 1 << 17

// MinimumFee is the smallest fee Transfer accepts.
const MinimumFee = 1

// Destination is one payment recipient.
type Destination struct {
	Address crypto.Address
	Amount  uint64
}

// TransferParams configures one call to Transfer.
type TransferParams struct {
	// SourceAddress restricts source selection to one wallet address; nil
	// considers every tracked address.
	SourceAddress *crypto.Address
	Destinations  []Destination
	Fee           uint64
	Mixin         int
	Extra         []byte
	UnlockTime    uint64
}

func validateTransferParams(p TransferParams) error {
	if len(p.Destinations) == 0 {
		return ErrZeroDestination
	}
	if p.Fee < MinimumFee {
		return ErrFeeTooSmall
	}
	var total uint64
	for _, d := range p.Destinations {
		if d.Amount == 0 {
			return ErrZeroDestination
		}
		next := total + d.Amount
		if next < total {
			return ErrSumOverflow
		}
		total = next
	}
	if total+p.Fee < total {
		return ErrSumOverflow
	}
	return nil
}

type selectedInput struct {
	record *WalletRecord
	row    transfers.Row
}

// Transfer runs the full transfer pipeline: source selection, mixin
// request, input preparation, output decomposition, build+sign, relay, and
// commit/rollback of the local intent record.
func (w *Wallet) Transfer(ctx context.Context, params TransferParams) (crypto.Hash, error) {
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
	w.mu.Unlock()

	if err := validateTransferParams(params); err != nil {
		return crypto.Hash{}, err
	}

	var needed uint64
	for _, d := range params.Destinations {
		needed += d.Amount
	}
	needed += params.Fee

	selected, err := w.selectSources(params.SourceAddress, needed, params.Mixin)
	if err != nil {
		return crypto.Hash{}, err
	}

	var totalSelected uint64
	for _, s := range selected {
		totalSelected += s.row.Amount
	}

	infos, accounts, err := w.prepareInputs(ctx, selected, params.Mixin)
	if err != nil {
		return crypto.Hash{}, err
	}

	changeAddr, err := w.ChangeAddress()
	if err != nil {
		return crypto.Hash{}, err
	}
	changeAmount := totalSelected - needed

	tx, err := buildTransferTransaction(infos, accounts, params.Destinations, changeAddr, changeAmount, params.Fee, params.Extra, params.UnlockTime)
	if err != nil {
		return crypto.Hash{}, err
	}

	txHash := tx.Hash()
	w.markSpentCache(selected, txHash)
	w.insertPendingTx(txHash, -int64(needed), params.Fee, tx.Extra, changeAmount, params.UnlockTime)

	if size := len(tx.Serialize()); size > UpperTransactionSizeLimit {
		w.unmarkSpentCache(selected)
		w.pushEvent(Event{Kind: EventTransactionCreated, TxID: txHash})
		return crypto.Hash{}, ErrTxTooBig
	}

	status, err := w.node.RelayTransaction(ctx, tx)
	if err != nil || status != node.RelayAccepted {
		w.unmarkSpentCache(selected)
		w.pushEvent(Event{Kind: EventTransactionCreated, TxID: txHash})
		if err != nil {
			return crypto.Hash{}, fmt.Errorf("wallet: relay transaction: %w", err)
		}
		return crypto.Hash{}, fmt.Errorf("wallet: node rejected transaction")
	}

	w.commitTx(txHash, changeAmount, false)
	w.pushEvent(Event{Kind: EventTransactionCreated, TxID: txHash})
	return txHash, nil
}

// selectSources implements the uniform wallet-then-output sampling rule:
// repeatedly pick a random wallet with remaining candidates, then a random
// candidate within it, skipping dust when dust is disallowed, until the
// funding target is met or candidates run out.
func (w *Wallet) selectSources(source *crypto.Address, needed uint64, mixin int) ([]selectedInput, error) {
	w.mu.Lock()
	records, err := w.addressRecordsLocked(source)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dustAllowed := mixin == 0
	flags := transfers.Flags{IncludeTypeKey: true, IncludeStateUnlocked: true}

	type pool struct {
		record *WalletRecord
		rows   []transfers.Row
	}
	pools := make([]*pool, 0, len(records))
	for _, rec := range records {
		rows := rec.Container.GetOutputs(flags, 0)
		filtered := rows[:0]
		for _, r := range rows {
			if _, spent := rec.SpentOutputCache[r.ID]; !spent {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) > 0 {
			pools = append(pools, &pool{record: rec, rows: filtered})
		}
	}

	var selected []selectedInput
	var total uint64
	for total < needed {
		live := pools[:0]
		for _, p := range pools {
			if len(p.rows) > 0 {
				live = append(live, p)
			}
		}
		pools = live
		if len(pools) == 0 {
			return nil, ErrInsufficientFunds
		}

		p := pools[rand.Intn(len(pools))]
		idx := rand.Intn(len(p.rows))
		row := p.rows[idx]
		p.rows = append(p.rows[:idx], p.rows[idx+1:]...)

		if row.Amount <= DustThreshold && !dustAllowed {
			continue
		}

		selected = append(selected, selectedInput{record: p.record, row: row})
		total += row.Amount
	}
	return selected, nil
}

// prepareInputs fetches mixin decoys per distinct amount concurrently and
// builds one InputKeyInfo + matching AccountKeys per selected input.
func (w *Wallet) prepareInputs(ctx context.Context, selected []selectedInput, mixin int) ([]txmodel.InputKeyInfo, []crypto.AccountKeys, error) {
	amounts := make([]uint64, 0, len(selected))
	seen := make(map[uint64]bool)
	for _, s := range selected {
		if !seen[s.row.Amount] {
			seen[s.row.Amount] = true
			amounts = append(amounts, s.row.Amount)
		}
	}

	decoysByAmount := make(map[uint64][]node.AmountOutputs)
	if mixin > 0 && len(amounts) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		results := make([]node.AmountOutputs, len(amounts))
		g.SetLimit(8)
		for i, a := range amounts {
			i, a := i, a
			g.Go(func() error {
				outs, err := w.node.GetRandomOutsByAmounts(gctx, []uint64{a}, mixin)
				if err != nil {
					return err
				}
				if len(outs) == 0 || len(outs[0].Outputs) < mixin {
					return ErrMixinCountTooBig
				}
				results[i] = outs[0]
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		for i, a := range amounts {
			decoysByAmount[a] = []node.AmountOutputs{results[i]}
		}
	}

	w.mu.Lock()
	viewSecret := w.viewSecret
	viewPublic := w.viewPublic
	w.mu.Unlock()

	infos := make([]txmodel.InputKeyInfo, len(selected))
	accounts := make([]crypto.AccountKeys, len(selected))
	for i, s := range selected {
		candidates := []node.AmountOutputs{}
		if set, ok := decoysByAmount[s.row.Amount]; ok {
			candidates = set
		}

		var decoys []txmodel.GlobalOutput
		if len(candidates) > 0 {
			decoys = candidates[0].Outputs
		}
		realOut := txmodel.GlobalOutput{Index: s.row.GlobalOutputIndex, TargetKey: s.row.OutputKey}
		outputs, ringPosition := decoymatch.SelectRing(decoys, realOut)

		infos[i] = txmodel.InputKeyInfo{
			Amount:  s.row.Amount,
			Outputs: outputs,
			RealOutput: txmodel.RealOutputInfo{
				TxPublicKey:  s.row.TxPublicKey,
				OutputInTx:   s.row.OutputInTx,
				RingPosition: ringPosition,
			},
		}
		accounts[i] = crypto.AccountKeys{
			Address:     crypto.Address{SpendPublic: s.record.SpendPublic, ViewPublic: viewPublic},
			SpendSecret: s.record.SpendSecret,
			ViewSecret:  viewSecret,
		}
	}
	return infos, accounts, nil
}

func buildTransferTransaction(infos []txmodel.InputKeyInfo, accounts []crypto.AccountKeys, destinations []Destination, changeAddr crypto.Address, changeAmount uint64, fee uint64, extraTail []byte, unlockTime uint64) (txmodel.Transaction, error) {
	b := txmodel.NewBuilder(TxVersion, unlockTime)

	for _, d := range destinations {
		if err := addDecomposedOutputs(b, d.Amount, d.Address); err != nil {
			return txmodel.Transaction{}, err
		}
	}
	if changeAmount > 0 {
		if err := addDecomposedOutputs(b, changeAmount, changeAddr); err != nil {
			return txmodel.Transaction{}, err
		}
	}

	if len(extraTail) > 0 {
		var keyBytes [32]byte
		copy(keyBytes[:], b.TxPublic().Bytes())
		raw := extra.Serialize([]extra.Field{extra.PublicKeyField{Key: keyBytes}}, extraTail)
		b.SetExtra(raw)
	}

	for i, info := range infos {
		if _, err := b.AddKeyInput(accounts[i], info); err != nil {
			return txmodel.Transaction{}, fmt.Errorf("wallet: preparing input %d: %w", i, err)
		}
	}

	return b.Sign()
}

func addDecomposedOutputs(b *txmodel.Builder, value uint64, addr crypto.Address) error {
	d := amount.Decompose(value, DustThreshold)
	for _, chunk := range d.Chunks {
		if _, err := b.DeriveRecipientOutput(chunk, addr, uint32(b.OutputCount())); err != nil {
			return err
		}
	}
	if d.Dust > 0 {
		if _, err := b.DeriveRecipientOutput(d.Dust, addr, uint32(b.OutputCount())); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wallet) markSpentCache(selected []selectedInput, txHash crypto.Hash) {
	for _, s := range selected {
		s.record.SpentOutputCache[s.row.ID] = txHash
	}
}

func (w *Wallet) unmarkSpentCache(selected []selectedInput) {
	for _, s := range selected {
		delete(s.record.SpentOutputCache, s.row.ID)
	}
}

func (w *Wallet) insertPendingTx(hash crypto.Hash, totalAmount int64, fee uint64, extra []byte, changeAmount, unlockTime uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txs[hash] = &WalletTx{
		Hash:         hash,
		State:        transfers.TxFailed,
		TotalAmount:  totalAmount,
		Fee:          fee,
		Extra:        extra,
		ChangeAmount: changeAmount,
		UnlockTime:   unlockTime,
		BlockHeight:  transfers.UnconfirmedHeightSentinel,
	}
}

func (w *Wallet) commitTx(hash crypto.Hash, changeAmount uint64, isFusion bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec, ok := w.txs[hash]; ok {
		rec.State = transfers.TxSucceeded
		rec.ChangeAmount = changeAmount
		rec.IsFusion = isFusion
	}
	if isFusion {
		w.fusionCache[hash] = true
	}
}
