package main

import (
	"os"

	"github.com/abdul-hamid-achik/restcheck/apps/cli/cmd"
)

// Set with -ldflags at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(cmd.Execute(version, buildTime))
}
