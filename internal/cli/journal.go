package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"galaxy-trader/internal/models"
	"galaxy-trader/pkg/utils"
)

// addJournalCommands adds commands that read the trade journal and pilot
// records straight from the database, so they work without a running engine.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newPilotsCmd(app))
}

func newTradesCmd(app *App) *cobra.Command {
	var (
		agentID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Show the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.OpenStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var trades []models.TradeReport
			if agentID != "" {
				trades, err = st.GetTradesByAgent(ctx, agentID, limit)
			} else {
				trades, err = st.GetTrades(ctx, limit)
			}
			if err != nil {
				output.Error("Failed to fetch trades: %v", err)
				return err
			}

			if output.JSONMode() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades recorded.")
				return nil
			}

			var totalProfit, totalXP float64
			var completed int
			table := NewTable(output, "Time", "Agent", "Route", "Ware", "Qty", "Profit", "XP", "Status")
			for _, t := range trades {
				status := "aborted"
				if t.Completed {
					status = "completed"
					completed++
					totalProfit += t.Profit
					totalXP += t.XPAwarded
				}
				table.AddRow(
					t.StartedAt.Local().Format("01-02 15:04:05"),
					t.AgentID,
					fmt.Sprintf("%s → %s", t.Origin, t.Destination),
					string(t.Ware),
					fmt.Sprintf("%d", t.Quantity),
					utils.FormatCredits(t.Profit),
					fmt.Sprintf("%.1f", t.XPAwarded),
					status,
				)
			}
			table.Render()
			output.Println()
			output.Printf("%d trades (%d completed), profit %s, XP %.1f\n",
				len(trades), completed, utils.FormatCredits(totalProfit), totalXP)

			stats, err := st.GetTradeStats(ctx)
			if err == nil && stats.TotalTrades > len(trades) {
				output.Dim("All time: %d trades, profit %s", stats.TotalTrades, utils.FormatCredits(stats.TotalProfit))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Filter by agent ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum trades to show")
	return cmd
}

func newPilotsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pilots [pilot-id]",
		Short: "Show pilot progression records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.OpenStore()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var pilots []models.PilotRecord
			if len(args) == 1 {
				rec, err := st.GetPilot(ctx, args[0])
				if err != nil {
					output.Error("Pilot %s not found: %v", args[0], err)
					return err
				}
				pilots = []models.PilotRecord{rec}
			} else {
				pilots, err = st.GetAllPilots(ctx)
				if err != nil {
					output.Error("Failed to fetch pilots: %v", err)
					return err
				}
			}

			if output.JSONMode() {
				return output.JSON(pilots)
			}
			if len(pilots) == 0 {
				output.Info("No pilot records. Pilots are persisted while the engine runs.")
				return nil
			}

			table := NewTable(output, "Pilot", "Level", "XP", "Gate", "Updated")
			for _, p := range pilots {
				gate := "-"
				if p.TrainingInProgress {
					gate = "training"
				} else if p.GatePending {
					gate = "pending"
				}
				table.AddRow(
					p.PilotID,
					fmt.Sprintf("%d", p.Level),
					fmt.Sprintf("%.1f", p.XP),
					gate,
					p.UpdatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}
}
