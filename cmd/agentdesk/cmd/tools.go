package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/notify"
	"github.com/AgentDesk/AgentDesk/internal/tools"
)

var toolsShowSchema bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools currently exposed to the agent loop",
	Run:   runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsShowSchema, "schema", false, "Print tool definitions as JSON")
}

var tierLabel = map[int]string{
	tools.TierReadOnly: "read-only",
	tools.TierWrite:    "write",
	tools.TierHighRisk: "high-risk",
}

// buildNotifier selects the notification sink: Kafka when brokers are
// configured, otherwise the process log.
func buildNotifier(cfg *config.Config) notify.Sink {
	if len(cfg.Notify.KafkaBrokers) > 0 {
		return notify.NewKafkaSink(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
	}
	return notify.LogSink{}
}

func runTools(cmd *cobra.Command, args []string) {
	cfg, st, resolver := loadEnvironment()
	m, _ := buildManager(cfg, st, resolver)

	registry := tools.NewRegistry()
	for _, t := range tools.PersonaTools(tools.Deps{
		Manager:   m,
		Identity:  resolver,
		Notifier:  buildNotifier(cfg),
		PersonaID: cfg.Persona.ID,
	}) {
		registry.Register(t)
	}

	if toolsShowSchema {
		defs, _ := json.MarshalIndent(registry.Definitions(), "", "  ")
		fmt.Println(string(defs))
		return
	}

	printHeader("Persona tools")
	list := registry.List()
	if len(list) == 0 {
		fmt.Println("  (none: no capabilities are currently available)")
		return
	}
	for _, t := range list {
		fmt.Printf("  %s [%s] %s\n", color.CyanString(t.Name()), tierLabel[tools.ToolTier(t)], t.Description())
	}
}
