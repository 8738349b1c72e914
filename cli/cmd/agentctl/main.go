package main

import (
	"os"

	"github.com/agentcore-dev/agentcore/go/cli/internal/cli/agentctl"
)

func main() {
	if err := agentctl.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
