//go:build !test

package cache

const (
	// HashSize is the number of hash chains, must be a power of 2.
	HashSize = 1024
)
