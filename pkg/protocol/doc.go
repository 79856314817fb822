// Package protocol implements the binary wire protocol between a portico
// server and its thin client.
//
// The server holds the authoritative element tree; the client holds a
// mirror. Server to client traffic is a stream of node patches (create,
// insert, move, remove, attribute and text updates), client to server
// traffic is a stream of input events. Both directions are framed with a
// 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// Frame types:
//
//   - FrameHandshake (0x00): connection setup
//   - FrameEvent (0x01): client to server events
//   - FramePatches (0x02): server to client patches
//   - FrameControl (0x03): ping, resync, close
//   - FrameAck (0x04): patch acknowledgment
//   - FrameError (0x05): error report
//
// Integers use protobuf-style varints (ZigZag for signed), strings are
// varint length-prefixed UTF-8, fixed-width integers are big-endian.
// Patch batches carry a sequence number so a reconnecting client can
// request a resync from the last sequence it applied.
//
// Node identity is carried as an EID string ("e1", "e2", ...) assigned by
// the server when a node is created. A MoveNode patch re-parents an
// existing EID without touching its subtree, which is how portal
// relocation reaches the client as a single cheap operation.
//
// Decoding enforces allocation and collection limits so a malicious peer
// cannot force large allocations with a forged length prefix.
package protocol
