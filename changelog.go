// Package dcg holds build-time assets of the dcg command.
package dcg

import _ "embed"

// Changelog is the CHANGELOG.md shipped with the binary.
//
//go:embed CHANGELOG.md
var Changelog []byte
