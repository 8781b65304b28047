package main

import (
	"fmt"
	"os"

	"github.com/daydemir/ralph-orchestrator/internal/cli/ralphctl"
)

func main() {
	if err := ralphctl.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
