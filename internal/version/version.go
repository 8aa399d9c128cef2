package version

// Set by -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)
