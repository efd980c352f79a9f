package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"galaxy-trader/internal/models"
	"galaxy-trader/pkg/utils"
)

// addStatusCommands adds commands that query a running engine over its
// status API.
func addStatusCommands(rootCmd *cobra.Command, app *App) {
	var addr string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show fleet status from a running engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var stats map[string]interface{}
			if err := apiGet(addr, "/api/stats", &stats); err != nil {
				return engineUnreachable(output, addr, err)
			}
			if output.JSONMode() {
				return output.JSON(stats)
			}
			output.Bold("Fleet Status")
			output.Printf("  agents:        %v\n", stats["agents"])
			output.Printf("  reservations:  %v\n", stats["reservations"])
			output.Printf("  cached routes: %v\n", stats["cached"])
			output.Printf("  blocked zones: %v\n", stats["blocked_zones"])
			if p, ok := stats["total_profit"].(float64); ok {
				output.Printf("  total profit:  %s\n", utils.FormatCredits(p))
			}
			if n, ok := stats["trades"].(float64); ok {
				output.Printf("  total trades:  %.0f\n", n)
			}
			return nil
		},
	}

	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var agents []models.AgentSnapshot
			if err := apiGet(addr, "/api/agents", &agents); err != nil {
				return engineUnreachable(output, addr, err)
			}
			if output.JSONMode() {
				return output.JSON(agents)
			}
			if len(agents) == 0 {
				output.Info("No agents registered.")
				return nil
			}
			table := NewTable(output, "Agent", "Pilot", "Ship", "Status", "Reservation", "Last Profit")
			for _, a := range agents {
				lastProfit := "-"
				if a.LastTrade != nil {
					lastProfit = utils.FormatCredits(a.LastTrade.Profit)
				}
				res := a.Reservation
				if res == "" {
					res = "-"
				}
				table.AddRow(a.AgentID, a.PilotID, a.ShipID, string(a.Status), res, lastProfit)
			}
			table.Render()
			return nil
		},
	}

	reservationsCmd := &cobra.Command{
		Use:   "reservations",
		Short: "List live reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var reservations []models.Reservation
			if err := apiGet(addr, "/api/reservations", &reservations); err != nil {
				return engineUnreachable(output, addr, err)
			}
			if output.JSONMode() {
				return output.JSON(reservations)
			}
			if len(reservations) == 0 {
				output.Info("No live reservations.")
				return nil
			}
			table := NewTable(output, "Opportunity", "Holder", "Expires In")
			now := time.Now()
			for _, r := range reservations {
				table.AddRow(r.OpportunityKey, r.HolderID, utils.FormatDuration(r.ExpiresAt.Sub(now)))
			}
			table.Render()
			return nil
		},
	}

	opportunitiesCmd := &cobra.Command{
		Use:   "opportunities",
		Short: "List cached trade opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var opps []models.Opportunity
			if err := apiGet(addr, "/api/opportunities", &opps); err != nil {
				return engineUnreachable(output, addr, err)
			}
			if output.JSONMode() {
				return output.JSON(opps)
			}
			if len(opps) == 0 {
				output.Info("Opportunity cache is empty.")
				return nil
			}
			table := NewTable(output, "Route", "Ware", "Qty", "Profit", "Hops", "Score")
			for _, o := range opps {
				table.AddRow(
					fmt.Sprintf("%s → %s", o.Origin, o.Destination),
					string(o.Ware),
					fmt.Sprintf("%d", o.Quantity),
					utils.FormatCredits(o.Profit),
					fmt.Sprintf("%d", o.Hops),
					fmt.Sprintf("%.0f", o.Score),
				)
			}
			table.Render()
			return nil
		},
	}

	dangerCmd := &cobra.Command{
		Use:   "danger",
		Short: "Blocked zones and threat reporting",
	}

	dangerCmd.AddCommand(&cobra.Command{
		Use:   "blocked",
		Short: "List currently blocked zones",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var zones []models.SectorID
			if err := apiGet(addr, "/api/danger/blocked", &zones); err != nil {
				return engineUnreachable(output, addr, err)
			}
			if output.JSONMode() {
				return output.JSON(zones)
			}
			if len(zones) == 0 {
				output.Success("No zones are blocked")
				return nil
			}
			output.Warning("%d zone(s) blocked:", len(zones))
			for _, z := range zones {
				output.Printf("  %s\n", z)
			}
			return nil
		},
	})

	reportCmd := &cobra.Command{
		Use:   "report <zone> <severity>",
		Short: "Report hostile activity in a zone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			var severity int
			if _, err := fmt.Sscanf(args[1], "%d", &severity); err != nil {
				return fmt.Errorf("severity must be a number 1-5: %q", args[1])
			}
			body := map[string]interface{}{"zone": args[0], "severity": severity}
			if err := apiPost(addr, "/api/danger/report", body); err != nil {
				return engineUnreachable(output, addr, err)
			}
			output.Success("Threat reported for %s (severity %d)", args[0], severity)
			return nil
		},
	}
	dangerCmd.AddCommand(reportCmd)

	for _, c := range []*cobra.Command{statusCmd, agentsCmd, reservationsCmd, opportunitiesCmd, dangerCmd} {
		c.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8420", "Engine status API address")
		rootCmd.AddCommand(c)
	}
}

func engineUnreachable(output *Output, addr string, err error) error {
	output.Error("Cannot reach engine at %s: %v", addr, err)
	output.Dim("Is the engine running with the status server enabled? See 'galaxy-trader run'.")
	return err
}

var apiClient = &http.Client{Timeout: 10 * time.Second}

func apiGet(addr, path string, out interface{}) error {
	resp, err := apiClient.Get(addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiPost(addr, path string, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := apiClient.Post(addr+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
