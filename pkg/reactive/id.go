package reactive

import "sync/atomic"

// idCounter issues unique IDs for signals, effects, and owners.
var idCounter uint64

// nextID returns the next unique ID. IDs are never reused.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
