// Command heatsolver runs the distributed 2D heat-diffusion solver.
package main

import (
	"fmt"
	"os"

	"github.com/Claxl/Parallel-Computing2023/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
