// Package buildinfo holds the version stamped into the binary.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/nixpkgs-vault/nixpkgs-vault/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/nixpkgs-vault/nixpkgs-vault/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/nixpkgs-vault/nixpkgs-vault/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Info is the build information as reported by the serve command.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
