// wikiup uploads local files to a MediaWiki site.
package main

import (
	"os"

	"github.com/hamichlol/wikiup/internal/cli"
	"github.com/hamichlol/wikiup/internal/version"
)

// Version information, overridden at build time with
// -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
