package server

import (
	"sync"
	"time"
)

// PatchHistoryEntry stores a sent patch frame for potential replay.
type PatchHistoryEntry struct {
	Seq    uint64    // Patch sequence number
	Frame  []byte    // Pre-encoded Patches frame for fast replay
	SentAt time.Time // When the frame was sent
}

// PatchHistory is a thread-safe ring buffer of recently sent patch frames.
// It keeps a sliding window that a reconnecting client can replay from;
// when the window no longer covers the client's gap, the session falls back
// to a full resync. The ring overwrites the oldest entry when full.
type PatchHistory struct {
	mu       sync.RWMutex
	entries  []*PatchHistoryEntry
	head     int    // Next write position (circular)
	count    int    // Current number of entries
	capacity int    // Max entries
	minSeq   uint64 // Lowest sequence in buffer
	maxSeq   uint64 // Highest sequence in buffer
}

// NewPatchHistory creates a patch history ring with the given capacity.
func NewPatchHistory(capacity int) *PatchHistory {
	if capacity <= 0 {
		capacity = 100 // Default from SessionConfig.MaxPatchHistory
	}
	return &PatchHistory{
		entries:  make([]*PatchHistoryEntry, capacity),
		capacity: capacity,
	}
}

// Add stores a patch frame in the buffer. Call it only after a successful
// write to the WebSocket. The frame bytes are copied so later buffer reuse
// by the caller cannot corrupt the history.
func (h *PatchHistory) Add(seq uint64, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)

	h.entries[h.head] = &PatchHistoryEntry{
		Seq:    seq,
		Frame:  frameCopy,
		SentAt: time.Now(),
	}
	h.head = (h.head + 1) % h.capacity

	if h.count < h.capacity {
		h.count++
	}

	h.maxSeq = seq
	if h.count == 1 {
		h.minSeq = seq
	} else if h.count == h.capacity {
		// Buffer full: head now points at the oldest surviving entry.
		if oldest := h.entries[h.head]; oldest != nil {
			h.minSeq = oldest.Seq
		}
	}
}

// GetFrames returns the frames for sequences in (afterSeq, toSeq], in
// order, ready for replay. It returns nil when any sequence in the range is
// no longer available.
func (h *PatchHistory) GetFrames(afterSeq, toSeq uint64) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return nil
	}
	if afterSeq+1 < h.minSeq || toSeq > h.maxSeq {
		return nil // Gap, or request out of range
	}

	seqToFrame := make(map[uint64][]byte, h.count)
	for i := 0; i < h.count; i++ {
		// Walk from tail (oldest) to head (newest).
		idx := (h.head - h.count + i + h.capacity) % h.capacity
		if entry := h.entries[idx]; entry != nil {
			seqToFrame[entry.Seq] = entry.Frame
		}
	}

	var frames [][]byte
	for seq := afterSeq + 1; seq <= toSeq; seq++ {
		frame, ok := seqToFrame[seq]
		if !ok {
			return nil // Missing sequence in range
		}
		frames = append(frames, frame)
	}

	return frames
}

// CanRecover reports whether the buffer can replay everything after
// lastSeq: the first needed sequence is still buffered and there is
// something newer to send.
func (h *PatchHistory) CanRecover(lastSeq uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return false
	}
	return lastSeq+1 >= h.minSeq && lastSeq < h.maxSeq
}

// MinSeq returns the minimum recoverable sequence.
func (h *PatchHistory) MinSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.minSeq
}

// MaxSeq returns the maximum sequence in the buffer.
func (h *PatchHistory) MaxSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxSeq
}

// Count returns the number of entries in the buffer.
func (h *PatchHistory) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear removes all entries. Used when a resumed session switches to a full
// resync and the old frames become irrelevant.
func (h *PatchHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		h.entries[i] = nil
	}
	h.head = 0
	h.count = 0
	h.minSeq = 0
	h.maxSeq = 0
}
