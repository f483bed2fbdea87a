package transfers

// updateVisibilityLocked recomputes the single visible witness for the
// key image identified by d, per the policy: a Spent row always wins,
// then the earliest Available row by (block_height, tx_index), and only
// when neither exists does a lone Unconfirmed row become visible. Callers
// must already hold c.mu.
func (c *Container) updateVisibilityLocked(d descriptor) {
	spent := c.rowsFor(c.spentByDescriptor, d)
	if len(spent) > 0 {
		for _, r := range spent {
			r.Visible = true
		}
		for _, r := range c.rowsFor(c.availableByDescriptor, d) {
			r.Visible = false
		}
		for _, r := range c.rowsFor(c.unconfirmedByDescriptor, d) {
			r.Visible = false
		}
		return
	}

	available := c.rowsFor(c.availableByDescriptor, d)
	if len(available) > 0 {
		for _, r := range c.rowsFor(c.unconfirmedByDescriptor, d) {
			r.Visible = false
		}
		earliest := available[0]
		for _, r := range available[1:] {
			if r.BlockHeight < earliest.BlockHeight ||
				(r.BlockHeight == earliest.BlockHeight && r.TxIndexInBlock < earliest.TxIndexInBlock) {
				earliest = r
			}
		}
		for _, r := range available {
			r.Visible = r == earliest
		}
		return
	}

	unconfirmed := c.rowsFor(c.unconfirmedByDescriptor, d)
	visible := len(unconfirmed) == 1
	for _, r := range unconfirmed {
		r.Visible = visible
	}
}
