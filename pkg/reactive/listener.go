package reactive

// Listener is anything that can be notified when a source it subscribed to
// changes. Effects implement Listener; tests may provide their own.
type Listener interface {
	// MarkDirty notifies the listener that one of its sources has changed.
	// Outside a batch this is delivered synchronously from the write.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used to deduplicate subscriptions and batched notifications.
	ID() uint64
}

// Cleanup is returned by an effect body to release resources. It runs before
// the effect re-runs and when the effect is disposed.
type Cleanup func()
