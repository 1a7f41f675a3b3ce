package main

import (
	"fmt"
	"os"

	"github.com/agentworkforce/courtwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "courtwatch:", err)
		os.Exit(1)
	}
}
