package main

import (
	"fmt"
	"os"
)

// Set by ldflags during build.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
