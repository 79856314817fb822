package protocol

import "testing"

func BenchmarkEncodeClickEvent(b *testing.B) {
	ev := NewClickEvent(1, "e42")
	enc := NewEncoder()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc.Reset()
		EncodeEventTo(enc, ev)
	}
}

func BenchmarkDecodeClickEvent(b *testing.B) {
	data := EncodeEvent(NewClickEvent(1, "e42"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeEvent(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeMovePatch(b *testing.B) {
	pf := &PatchesFrame{
		Seq:     1,
		Patches: []Patch{NewMoveNodePatch("e12", "e3", 0)},
	}
	enc := NewEncoder()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc.Reset()
		EncodePatchesTo(enc, pf)
	}
}

func BenchmarkEncodePatchBatch100(b *testing.B) {
	pf := &PatchesFrame{Seq: 1}
	for i := 0; i < 50; i++ {
		pf.Patches = append(pf.Patches,
			NewCreateElementPatch("e1", "div"),
			NewInsertNodePatch("e1", "e0", 0),
		)
	}
	enc := NewEncoderWithCap(4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc.Reset()
		EncodePatchesTo(enc, pf)
	}
}

func BenchmarkDecodePatchBatch100(b *testing.B) {
	pf := &PatchesFrame{Seq: 1}
	for i := 0; i < 50; i++ {
		pf.Patches = append(pf.Patches,
			NewCreateElementPatch("e1", "div"),
			NewInsertNodePatch("e1", "e0", 0),
		)
	}
	data := EncodePatches(pf)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodePatches(data); err != nil {
			b.Fatal(err)
		}
	}
}
