// Package integration holds end-to-end tests that drive the public
// facade: open, index, search, modify, re-index.
package integration
