package check

// Version information for the allocation audit layer.
const (
	// Version is the current version of the audit runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the audit layer.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Capabilities lists the build-time capabilities compiled into
	// this binary.
	Capabilities []string

	// Enabled indicates whether recording is active.
	Enabled bool
}

// GetInfo returns information about the audit runtime.
//
// Example:
//
//	info := check.GetInfo()
//	fmt.Printf("alloccheck %s %v\n", info.Version, info.Capabilities)
func GetInfo() Info {
	return Info{
		Version:      Version,
		Capabilities: capabilities(),
		Enabled:      Enabled(),
	}
}
