// Command tallybridge bridges an on-premises accounting terminal and a
// central ingestion API.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tallybridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
