package reactive

// Batch groups multiple signal writes into one notification sweep. Listeners
// marked by writes inside the batch are deduplicated and notified once when
// the outermost batch exits. Batches nest.
func Batch(fn func()) {
	enterBatch()

	defer func() {
		if exitBatch() {
			flushPending()
		}
	}()

	fn()
}

// flushPending deduplicates queued listeners by ID and notifies each once.
func flushPending() {
	pending := drainNotify()
	if len(pending) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(pending))
	for _, l := range pending {
		id := l.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		l.MarkDirty()
	}
}

// Untracked runs fn with dependency tracking suspended: signal reads inside
// do not subscribe the current listener. Portals render children under
// Untracked so content reads cannot retrigger the relocation effect.
func Untracked(fn func()) {
	old := setListener(nil)
	defer setListener(old)
	fn()
}
