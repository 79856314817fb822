package protocol

import "testing"

// FuzzDecodeFrame tests that decoding arbitrary bytes doesn't panic.
func FuzzDecodeFrame(f *testing.F) {
	f.Add(NewFrame(FrameEvent, []byte{0x01, 0x02}).Encode())
	f.Add(NewFrame(FramePatches, []byte("test")).Encode())
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeFrame(data)
	})
}

// FuzzDecodeEvent tests that decoding arbitrary bytes doesn't panic.
func FuzzDecodeEvent(f *testing.F) {
	f.Add(EncodeEvent(NewClickEvent(1, "e1")))
	f.Add(EncodeEvent(NewInputEvent(2, "e2", "hello")))
	f.Add(EncodeEvent(NewCustomEvent(3, "e3", "custom", []byte{1, 2, 3})))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeEvent(data)
	})
}

// FuzzDecodePatches tests that decoding arbitrary bytes doesn't panic.
func FuzzDecodePatches(f *testing.F) {
	f.Add(EncodePatches(&PatchesFrame{
		Seq: 1,
		Patches: []Patch{
			NewCreateElementPatch("e1", "div"),
			NewInsertNodePatch("e1", "e0", 0),
		},
	}))
	f.Add(EncodePatches(&PatchesFrame{Seq: 2}))
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodePatches(data)
	})
}

// FuzzDecodeControl tests that decoding arbitrary bytes doesn't panic.
func FuzzDecodeControl(f *testing.F) {
	f.Add(EncodeControl(NewPing(12345)))
	f.Add(EncodeControl(NewResyncRequest(10)))
	f.Add(EncodeControl(NewClose(CloseNormal, "bye")))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _, _ = DecodeControl(data)
	})
}

// FuzzDecodeClientHello tests that decoding arbitrary bytes doesn't panic.
func FuzzDecodeClientHello(f *testing.F) {
	f.Add(EncodeClientHello(NewClientHello()))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeClientHello(data)
	})
}
