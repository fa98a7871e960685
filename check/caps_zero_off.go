//go:build alloccheck_nozero

package check

// zeroCapability reports whether this build scans zero-initializing
// allocations before handing them to the caller.
const zeroCapability = false
