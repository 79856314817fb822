// Package portal relocates rendered content to a dynamically chosen place in
// the element tree.
//
// A portal watches a Host signal holding the element its content should live
// in, or nil when none is available. DynamicPortal re-renders its children on
// every host change: into the host itself, into a wrapper created around the
// host, or into a shared fallback container while no host exists, tearing the
// previous mount down first. PersistentPortal renders exactly once into a
// hidden home container and afterwards only re-parents the persisted subtree,
// so state held inside it (a canvas context, an input value, a running
// animation on the client) survives every relocation.
//
// Containers the portals create themselves are appended under the document
// root and resolved by well-known ids. A host element supplied from outside
// is never removed by portal teardown.
//
// Everything here runs on the document's event-loop goroutine. Relocation is
// driven by reactive effects and completes synchronously within the signal
// write that triggered it.
package portal
