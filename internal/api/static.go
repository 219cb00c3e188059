package api

import (
	"embed"
	"io/fs"
)

//go:embed web
var webFS embed.FS

// registerUI serves the embedded operator UI at the root. API routes are
// more specific and win over the wildcard.
func (s *Server) registerUI() error {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return err
	}
	s.echo.StaticFS("/", sub)
	return nil
}
