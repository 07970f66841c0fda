package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "Persona integration engine",
	Long:  color.CyanString("AgentDesk") + "\nAttach a persona to a chat surface and grant it scoped abilities on external services.",
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(integrationsCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(auditCmd)
}

func printHeader(title string) {
	fmt.Println(color.New(color.Bold).Sprint(title))
}

// loadEnvironment loads config, opens the store and builds the operator
// resolver shared by all subcommands. The store is optional: a failure to
// open it degrades to in-memory-only operation with a warning.
func loadEnvironment() (*config.Config, *store.Store, identity.Resolver) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println(color.RedString("Config error: %v", err))
		os.Exit(1)
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			slog.Warn("Store unavailable; continuing without persistence", "path", cfg.Store.Path, "error", err)
			st = nil
		}
	}

	var resolver identity.Resolver = identity.Static{}
	if cfg.Operator.Email != "" || cfg.Operator.Name != "" {
		static := identity.Static{Actor: &identity.Actor{
			ID:    cfg.Operator.ID,
			Name:  cfg.Operator.Name,
			Email: cfg.Operator.Email,
		}}
		if st != nil {
			resolver = identity.Chain{static, st}
		} else {
			resolver = static
		}
	} else if st != nil {
		resolver = st
	}
	return cfg, st, resolver
}
