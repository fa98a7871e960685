//go:build alloccheck_norealloc

package check

// reallocCapability reports whether this build preserves record
// identity across reallocation and uses the sharded hash-based map.
const reallocCapability = false
