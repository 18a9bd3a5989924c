// Package version holds the build version, overridden at release time
// via -ldflags "-X ...version.Version=".
package version

var Version = "0.3.0-dev"
