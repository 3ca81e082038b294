//go:build test

package cache

const (
	// HashSize is the number of hash chains, must be a power of 2.
	// Tests use tiny table to exercise long chains.
	HashSize = 4
)
