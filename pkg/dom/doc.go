// Package dom implements the retained element tree that portals relocate
// content within.
//
// A Document owns a mutable tree of Elements rooted at Root(). Unlike a
// virtual DOM, the tree is not rebuilt and diffed: callers mutate it in place
// (append, re-parent, remove, set attributes) and every mutation is reported
// to the document's PatchSink as a Patch. A thin client that replays the
// patch stream holds an exact mirror of the tree.
//
// Node identity is stable: each element receives a wire ID (EID) at creation
// and keeps it for life, across any number of re-parenting moves. A
// re-parented node emits a single MoveNode patch and the content inside it is
// untouched, which is what lets PersistentPortal relocate a live subtree
// without destroying its state.
//
// The tree is not synchronized. All mutation is expected to happen on a
// single goroutine (the session event loop); documents must not be shared
// across loops.
package dom
