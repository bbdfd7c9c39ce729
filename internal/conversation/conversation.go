// Package conversation manages the rolling dialogue memory: a bounded,
// per-user window of recent question/answer turns. It persists turns, evicts
// beyond the retention limit, and produces embedded text windows over the
// recent dialogue for context fusion.
package conversation

import "errors"

// DefaultKeepLast is the number of turns retained per user.
const DefaultKeepLast = 5

// Window splitting parameters. Windows are small and overlapping so that a
// single fact mentioned in one turn stays retrievable on its own.
const (
	windowSize    = 150
	windowOverlap = 40
)

// Sentinel errors for conversation operations. Check with errors.Is().
var (
	// ErrStore indicates the underlying database is unavailable or failed.
	ErrStore = errors.New("conversation store error")
)
