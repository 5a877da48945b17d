// Package core is the orchestration layer.  It composes the account
// store, the worker slot table and the session state machine into the
// running bank server, and provides a builder that selects the right
// mode from a Config.
//
// Architecture layers (bottom → top):
//
//	bank, slots, wire  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of bankd (serve or
// connect).  Each mode owns its full lifecycle from startup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
