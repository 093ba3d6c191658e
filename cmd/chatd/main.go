package main

import (
	"github.com/dolsel/livetv/internal/app"
	"github.com/dolsel/livetv/internal/cli"
)

// set at link time
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Execute(app.Build{Version: version, Commit: commit, Date: buildDate})
}
