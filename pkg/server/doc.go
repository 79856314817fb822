// Package server hosts live portico sessions over WebSocket.
//
// Each session owns one retained dom.Document and a single event-loop
// goroutine. All signal writes, portal relocations, and document mutations
// for a session happen on that goroutine; the read and write loops only
// move frames. Mutations recorded during an event are flushed to the client
// as one sequenced Patches frame when the event handler returns.
//
// The server keeps a registry of sessions, upgrades connections with
// gorilla/websocket, and supports resume: a reconnecting client replays
// missed patch frames from a per-session history ring, falling back to a
// full HTML resync when the history no longer covers the gap. With a
// snapshot store configured, sessions also survive a server restart.
package server
