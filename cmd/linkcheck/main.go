package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cleansite/linkcheck/internal/cmd"
)

// Version information set by build flags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime)

	if err := cmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode reports err on stderr and maps it to the process exit status.
// Broken links were already listed in the printed report.
func exitCode(err error) int {
	var broken *cmd.BrokenLinksError
	if errors.As(err, &broken) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
