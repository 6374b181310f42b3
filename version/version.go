// Package version holds build metadata stamped in at link time.
package version

import "runtime"

// Set via -ldflags="-X github.com/davidZakaria/cath-archives-sub000/version.GitRelease=..."
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain the binary was built with.
var GoInfo = runtime.Version()
