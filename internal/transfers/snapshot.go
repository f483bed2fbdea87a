package transfers

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// snapshotVersion is the wire tag written at the start of every saved
// snapshot. Bumping it is a breaking change; Load rejects anything else
// with ErrUnsupportedVersion.
const snapshotVersion = 1

// snapshot is the gob-serializable shape of a Container. No ecosystem
// codec in the retrieval pack targets arbitrary in-memory graphs the way
// gob does for a stdlib type, so persistence here is the one place this
// package reaches for the standard library instead of a third-party
// serializer.
type snapshot struct {
	Version       int
	CurrentHeight uint64
	Rows          []Row
	Txs           []TxRecord
}

// Save serializes the engine's full state: version tag, current height,
// and every row and transaction record.
func (c *Container) Save(w io.Writer) error {
	c.mu.Lock()
	snap := snapshot{
		Version:       snapshotVersion,
		CurrentHeight: c.currentHeight,
		Rows:          make([]Row, 0, len(c.rows)),
		Txs:           make([]TxRecord, 0, len(c.txs)),
	}
	for _, r := range c.rows {
		snap.Rows = append(snap.Rows, *r)
	}
	for _, rec := range c.txs {
		snap.Txs = append(snap.Txs, *rec)
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("transfers: encode snapshot: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Load replaces the engine's state with the snapshot read from r. The
// swap is atomic: a decode failure or version mismatch leaves the
// existing state untouched.
func (c *Container) Load(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("transfers: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return ErrUnsupportedVersion
	}

	fresh := NewContainer()
	fresh.currentHeight = snap.CurrentHeight
	for i := range snap.Rows {
		r := snap.Rows[i]
		fresh.indexRow(&r)
	}
	for i := range snap.Txs {
		rec := snap.Txs[i]
		fresh.txs[rec.Hash] = &rec
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentHeight = fresh.currentHeight
	c.rows = fresh.rows
	c.txs = fresh.txs
	c.unconfirmedByDescriptor = fresh.unconfirmedByDescriptor
	c.availableByDescriptor = fresh.availableByDescriptor
	c.spentByDescriptor = fresh.spentByDescriptor
	c.byTxHash = fresh.byTxHash
	c.spentBySpendingTx = fresh.spentBySpendingTx
	return nil
}
