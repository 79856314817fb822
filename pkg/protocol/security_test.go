package protocol

import (
	"io"
	"testing"
)

// A forged length prefix must fail cleanly, not allocate.
func TestStringAllocationLimit(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(MaxAllocation + 1)
	payload := append(e.Bytes(), make([]byte, MaxAllocation+1)...)

	d := NewDecoder(payload)
	if _, err := d.ReadString(); err != ErrAllocationTooLarge {
		t.Errorf("ReadString() error = %v, want ErrAllocationTooLarge", err)
	}

	d = NewDecoder(payload)
	if _, err := d.ReadLenBytes(); err != ErrAllocationTooLarge {
		t.Errorf("ReadLenBytes() error = %v, want ErrAllocationTooLarge", err)
	}
}

// When the announced length exceeds the buffer, the bounds check fires
// before any allocation.
func TestStringBoundsCheck(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1 << 40)
	d := NewDecoder(e.Bytes())
	if _, err := d.ReadString(); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadString() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestCollectionCountLimit(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(MaxCollectionCount + 1)
	payload := append(e.Bytes(), make([]byte, 64)...)

	d := NewDecoder(payload)
	if _, err := d.ReadCollectionCount(); err != ErrCollectionTooLarge {
		t.Errorf("ReadCollectionCount() error = %v, want ErrCollectionTooLarge", err)
	}
}

func TestCollectionCountBoundsCheck(t *testing.T) {
	// Count is under the hard limit but larger than the remaining bytes:
	// a real collection of that size could not fit, so reject before
	// allocating.
	e := NewEncoder()
	e.WriteUvarint(1000)
	d := NewDecoder(e.Bytes())
	if _, err := d.ReadCollectionCount(); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadCollectionCount() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestPatchBatchForgedCount(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)          // seq
	e.WriteUvarint(1 << 40)    // absurd patch count
	if _, err := DecodePatches(e.Bytes()); err == nil {
		t.Error("expected an error for a forged patch count")
	}
}

func TestSubmitForgedFieldCount(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteByte(byte(EventSubmit))
	e.WriteString("e1")
	e.WriteUvarint(1 << 40)
	if _, err := DecodeEvent(e.Bytes()); err == nil {
		t.Error("expected an error for a forged field count")
	}
}

func TestReadBytesPastEnd(t *testing.T) {
	d := NewDecoder([]byte{1, 2})
	if _, err := d.ReadBytes(3); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadBytes(3) error = %v, want io.ErrUnexpectedEOF", err)
	}
}
