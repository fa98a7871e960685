package check

// capabilities lists the build-time capabilities compiled into this
// binary, in a stable order.
func capabilities() []string {
	caps := make([]string, 0, 2)
	if reallocCapability {
		caps = append(caps, "realloc")
	}
	if zeroCapability {
		caps = append(caps, "zeroed")
	}
	return caps
}
