package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent integration actions for the persona",
	Run:   runAudit,
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of entries to show")
}

func runAudit(cmd *cobra.Command, args []string) {
	printHeader("Recent integration actions")
	cfg, st, _ := loadEnvironment()
	if st == nil {
		fmt.Println("  (no store configured; audit history is unavailable)")
		return
	}
	entries, err := st.RecentAudit(context.Background(), cfg.Persona.ID, auditLimit)
	if err != nil {
		fmt.Println(color.RedString("Audit query failed: %v", err))
		return
	}
	if len(entries) == 0 {
		fmt.Println("  (no recorded actions)")
		return
	}
	for _, e := range entries {
		status := color.GreenString("ok  ")
		detail := ""
		if !e.Success {
			status = color.RedString("fail")
			detail = " — " + e.Error
		}
		fmt.Printf("  %s %s %-22s %s%s\n", status, e.Timestamp.Format(time.RFC3339), e.ActionType, e.Provider, detail)
	}
}
