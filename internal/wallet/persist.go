package wallet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// snapshotVersion is the wire tag written at the start of every saved
// wallet snapshot, mirroring internal/transfers' own Save/Load contract
// (§4.E.3): Load rejects anything else with ErrUnsupportedVersion.
const snapshotVersion = 1

// recordSnapshot is the gob-serializable shape of a WalletRecord. The
// container's own rows are flattened to bytes through its existing
// Save/Load rather than re-exported field by field.
type recordSnapshot struct {
	SpendPublic      crypto.Point
	SpendSecret      crypto.Scalar
	Tracking         bool
	CreationTime     uint64
	Container        []byte
	SpentOutputCache map[uuid.UUID]crypto.Hash
}

// unlockJobSnapshot mirrors unlockJob with exported fields, since gob
// only encodes those.
type unlockJobSnapshot struct {
	TxHash      crypto.Hash
	UnlockAt    uint64
	SpendPublic crypto.Point
}

// walletSnapshot's Records preserves address creation order (Save walks
// w.addressOrder), so Load can rebuild addressOrder from it directly
// instead of carrying a redundant parallel slice of the same keys.
type walletSnapshot struct {
	Version     int
	State       State
	Mode        Mode
	ViewSecret  crypto.Scalar
	ViewPublic  crypto.Point
	Records     []recordSnapshot
	Txs         []WalletTx
	FusionCache map[crypto.Hash]bool
	UnlockJobs  []unlockJobSnapshot
}

// Save serializes the wallet's full state — view keys, every address's
// keys and container, wallet-level transaction records, and pending
// unlock jobs — as an opaque byte stream for internal/walletdb to seal
// and persist.
func (w *Wallet) Save(out io.Writer) error {
	w.mu.Lock()
	snap := walletSnapshot{
		Version:     snapshotVersion,
		State:       w.state,
		Mode:        w.mode,
		ViewSecret:  w.viewSecret,
		ViewPublic:  w.viewPublic,
		FusionCache: make(map[crypto.Hash]bool, len(w.fusionCache)),
	}
	for hash, isFusion := range w.fusionCache {
		snap.FusionCache[hash] = isFusion
	}
	for _, tx := range w.txs {
		snap.Txs = append(snap.Txs, *tx)
	}
	for _, job := range w.unlockJobs {
		snap.UnlockJobs = append(snap.UnlockJobs, unlockJobSnapshot{
			TxHash:      job.txHash,
			UnlockAt:    job.unlockAt,
			SpendPublic: job.spendPublic,
		})
	}
	for _, spendPublic := range w.addressOrder {
		rec := w.addresses[spendPublic]
		var containerBuf bytes.Buffer
		if err := rec.Container.Save(&containerBuf); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("wallet: save container for address: %w", err)
		}
		cache := make(map[uuid.UUID]crypto.Hash, len(rec.SpentOutputCache))
		for id, hash := range rec.SpentOutputCache {
			cache[id] = hash
		}
		snap.Records = append(snap.Records, recordSnapshot{
			SpendPublic:      rec.SpendPublic,
			SpendSecret:      rec.SpendSecret,
			Tracking:         rec.Tracking,
			CreationTime:     rec.CreationTime,
			Container:        containerBuf.Bytes(),
			SpentOutputCache: cache,
		})
	}
	w.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("wallet: encode snapshot: %w", err)
	}
	_, err := out.Write(buf.Bytes())
	return err
}

// Load replaces the wallet's state with the snapshot read from in. The
// wallet must not already be Initialized; a decode failure or version
// mismatch leaves it untouched.
func (w *Wallet) Load(in io.Reader) error {
	var snap walletSnapshot
	if err := gob.NewDecoder(in).Decode(&snap); err != nil {
		return fmt.Errorf("wallet: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return ErrUnsupportedVersion
	}

	addresses := make(map[crypto.Point]*WalletRecord, len(snap.Records))
	addressOrder := make([]crypto.Point, 0, len(snap.Records))
	for _, rs := range snap.Records {
		container := transfers.NewContainer()
		if err := container.Load(bytes.NewReader(rs.Container)); err != nil {
			return fmt.Errorf("wallet: load container for address: %w", err)
		}
		cache := make(map[uuid.UUID]crypto.Hash, len(rs.SpentOutputCache))
		for id, hash := range rs.SpentOutputCache {
			cache[id] = hash
		}
		// rs.SpendPublic is reused verbatim as both the map key and the
		// addressOrder entry, matching createAddressLocked's invariant
		// that every address is keyed by the exact same Point value it's
		// ordered by.
		addresses[rs.SpendPublic] = &WalletRecord{
			SpendPublic:      rs.SpendPublic,
			SpendSecret:      rs.SpendSecret,
			Tracking:         rs.Tracking,
			Container:        container,
			CreationTime:     rs.CreationTime,
			SpentOutputCache: cache,
		}
		addressOrder = append(addressOrder, rs.SpendPublic)
	}

	txs := make(map[crypto.Hash]*WalletTx, len(snap.Txs))
	for i := range snap.Txs {
		tx := snap.Txs[i]
		txs[tx.Hash] = &tx
	}

	fusionCache := make(map[crypto.Hash]bool, len(snap.FusionCache))
	for hash, isFusion := range snap.FusionCache {
		fusionCache[hash] = isFusion
	}

	unlockJobs := make([]unlockJob, 0, len(snap.UnlockJobs))
	for _, js := range snap.UnlockJobs {
		unlockJobs = append(unlockJobs, unlockJob{
			txHash:      js.TxHash,
			unlockAt:    js.UnlockAt,
			spendPublic: js.SpendPublic,
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = snap.State
	w.mode = snap.Mode
	w.viewSecret = snap.ViewSecret
	w.viewPublic = snap.ViewPublic
	w.addressOrder = addressOrder
	w.addresses = addresses
	w.txs = txs
	w.fusionCache = fusionCache
	w.unlockJobs = unlockJobs
	return nil
}
