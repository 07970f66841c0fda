package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AgentDesk/AgentDesk/internal/prompt"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt generated for the persona",
	Run:   runPrompt,
}

func runPrompt(cmd *cobra.Command, args []string) {
	cfg, _, _ := loadEnvironment()
	set := cfg.IntegrationSet()
	fmt.Print(prompt.PersonaSystemPrompt(&set))
}
