// Command swapsim drives a simulated StableSwap pool with fixed and
// random-walk trade sequences and records per-trade telemetry.
//
// Usage:
//
//	swapsim setup --config config.yaml
//	swapsim run --config config.yaml
//	swapsim walks --config config.yaml --trials 100
package main

import (
	"os"

	"github.com/vadiminshakov/swapsim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
