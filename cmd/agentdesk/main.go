// Package main is the entry point for the agentdesk CLI.
package main

import (
	"os"

	"github.com/AgentDesk/AgentDesk/cmd/agentdesk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
