package main

import (
	"context"
	"os"

	"github.com/camruler/camruler/cmd"
	"github.com/camruler/camruler/internal/buildinfo"
)

// set with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	build := &buildinfo.Context{Version: version, BuildDate: buildDate}
	if err := cmd.RootCommand(build).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
