package clientdist

import _ "embed"

// PorticoJS is the thin client JavaScript bundle.
//
// It is served by the framework at "/portico/client.js".
//
//go:embed portico.js
var PorticoJS []byte
