// Package buildinfo carries build-time metadata, kept apart from user
// configuration.
package buildinfo

import "fmt"

const unknown = "unknown"

// Context holds values injected with -ldflags at build time.
type Context struct {
	Version   string
	BuildDate string
}

// GetVersion returns the version, or "unknown" for development builds.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown".
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// Release is the release name reported to Sentry.
func (c *Context) Release() string {
	return "camruler@" + c.GetVersion()
}

// String formats the version line printed by the CLI.
func (c *Context) String() string {
	return fmt.Sprintf("camruler %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
