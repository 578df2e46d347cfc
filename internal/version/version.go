package version

var (
	// Version is the current application version.
	// The build system may set it through ldflags; otherwise the literal below is used.
	Version = "v1.4.2" // Fallback matching current RELEASE

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
