package main

import (
	"fmt"
	"os"

	"github.com/daydemir/ralph-orchestrator/internal/cli/ralphd"
)

func main() {
	if err := ralphd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
