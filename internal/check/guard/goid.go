// Copyright 2025 The alloccheck Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction via runtime.Stack parsing.
//
// The guard keys its per-goroutine depth counters by goroutine ID.
// There is no portable runtime API for the current goroutine's ID, so
// we parse the first line of the goroutine's own stack trace:
//
//	"goroutine 123 [running]:\n..."
//
// Performance: ~1500ns per call (dominated by runtime.Stack). This is
// paid once per shim entry point, which is acceptable for a test-suite
// auditing layer. An assembly g-pointer fast path is possible but is
// deliberately not used: the goid offset in runtime.g shifts between
// Go versions and correctness beats nanoseconds here.

package guard

import "runtime"

// goroutineID returns the current goroutine's ID, or 0 if the stack
// header cannot be parsed (which does not happen on any supported
// runtime; 0 simply degrades that goroutine to a shared counter).
func goroutineID() int64 {
	// We only need the first line of the header, 64 bytes is enough.
	// Format: "goroutine 123 [running]:\n..."
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the numeric goroutine ID from stack trace bytes.
//
// Expected format: "goroutine 123 [running]:...". Direct byte parsing,
// no string conversion of the digits, no regex.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	const prefixLen = 10 // len("goroutine ")

	if len(buf) < prefixLen {
		return 0
	}
	if string(buf[:prefixLen]) != prefix {
		return 0
	}

	var gid int64
	for i := prefixLen; i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			// Non-digit terminates the ID (space before "[running]").
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
