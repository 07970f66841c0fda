package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
	"github.com/AgentDesk/AgentDesk/internal/integration/calendar"
	"github.com/AgentDesk/AgentDesk/internal/store"
	"github.com/AgentDesk/AgentDesk/internal/wiring"
)

var integrationsCmd = &cobra.Command{
	Use:   "integrations",
	Short: "Inspect and test the persona's integrations",
}

var integrationsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a live connectivity test against every registered provider",
	Run:   runIntegrationsTest,
}

var integrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which capabilities are currently available",
	Run:   runIntegrationsList,
}

func init() {
	integrationsCmd.AddCommand(integrationsTestCmd)
	integrationsCmd.AddCommand(integrationsListCmd)
}

func buildManager(cfg *config.Config, st *store.Store, resolver identity.Resolver) (*integration.Manager, *config.PersonaIntegrationSet) {
	set := cfg.IntegrationSet()
	var opts []integration.ManagerOption
	var tokens calendar.TokenStore
	if st != nil {
		opts = append(opts, integration.WithAuditLogger(st))
		tokens = st
	}
	return wiring.BuildManager(&set, tokens, resolver, opts...), &set
}

func runIntegrationsTest(cmd *cobra.Command, args []string) {
	printHeader("Integration connectivity")
	cfg, st, resolver := loadEnvironment()
	m, _ := buildManager(cfg, st, resolver)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	results := m.TestAll(ctx)

	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		res := results[k]
		if res.Success {
			fmt.Printf("  %s %s\n", color.GreenString("ok  "), k)
		} else {
			fmt.Printf("  %s %s: %s\n", color.RedString("fail"), k, res.Error)
		}
	}
}

func runIntegrationsList(cmd *cobra.Command, args []string) {
	printHeader("Available capabilities")
	cfg, st, resolver := loadEnvironment()
	m, _ := buildManager(cfg, st, resolver)

	caps := m.AvailableCapabilities()
	if len(caps) == 0 {
		fmt.Println("  (none: no integrations are connected and enabled)")
		return
	}
	for _, c := range caps {
		fmt.Printf("  %s %-22s %s\n", color.GreenString("*"), c.ID, c.Description)
	}
}
