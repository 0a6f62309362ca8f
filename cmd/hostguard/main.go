// hostguard blocks sites through the system hosts file and scores text and
// web pages against keyword lists.
package main

import (
	"fmt"
	"os"

	"github.com/haukened/hostguard/internal/guard/cli"
)

// version is set via ldflags at build time
var version = "0.1.0-dev"

func main() {
	rootCmd := cli.NewRootCmd(version)
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[hostguard] Error: %v\n", err)
		os.Exit(1)
	}
}
