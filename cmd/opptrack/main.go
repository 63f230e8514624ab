// Command opptrack ingests opportunity PDFs and serves industry insights.
package main

import (
	"os"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/cli"
)

func main() {
	cli.SetLoader(wiring{})
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
