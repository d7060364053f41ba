// Package app wires configuration, session handling, the library store, and
// the acquisition pipeline into the operations the CLI exposes. It also
// enforces single-instance execution for mutating operations through a lock
// file in the state directory.
package app
