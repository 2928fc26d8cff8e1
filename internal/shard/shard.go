// Package shard derives sharded keys for relationship records and id sets.
package shard

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// Key computes the sharded key for member under base.
// With numShards=1, every member goes to shard "00".
// With numShards>1, members are distributed by their xxhash.
func Key(base, member string, numShards int) string {
	return fmt.Sprintf("%s#%02x", base, Of(member, numShards))
}

// Of returns the shard number member belongs to.
func Of(member string, numShards int) int {
	numShards = Clamp(numShards)
	if numShards == 1 {
		return 0
	}
	return int(xxhash.Sum64String(member) % uint64(numShards))
}

// Keys returns every shard key under base, in shard order.
func Keys(base string, numShards int) []string {
	numShards = Clamp(numShards)
	keys := make([]string, numShards)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s#%02x", base, i)
	}
	return keys
}

// Clamp bounds n to [1, MaxShards].
func Clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxShards {
		return MaxShards
	}
	return n
}
