// Package render produces HTML snapshots of live documents.
//
// A snapshot serializes a dom tree exactly as the patch stream would have
// built it on the client: attributes in sorted order, shadow roots as
// declarative <template shadowrootmode="open"> blocks, text escaped, no
// invented whitespace. Equal trees produce byte-equal snapshots, which is
// what lets a full resync replace the client's mirror wholesale.
//
// The server uses snapshots twice: for the bootstrap page a new session
// receives before its websocket opens, and for resync responses when a
// client has fallen too far behind the patch stream. With Config.IncludeEIDs
// every element carries a data-eid attribute so the thin client can bind
// wire ids back to real nodes after first paint.
package render
