package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/medzoom/internal/ui"
)

var (
	flagServer  string
	flagTimeout time.Duration
	flagJSON    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show room and connection counts of a running server",
	Long: `Query the /stats endpoint of a running signaling server.

Examples:
  medzoom stats
  medzoom stats --server http://meet.example.com:3000
  medzoom stats --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			s, err := fetchStats(flagServer, flagTimeout)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		stopSpinner := ui.RunConnectionSpinner("Querying server...")
		s, err := fetchStats(flagServer, flagTimeout)
		stopSpinner()
		if err != nil {
			return err
		}
		ui.RenderStats(flagServer, s)
		if s.Rooms == 0 {
			ui.PrintInfo("No meetings in progress")
		}
		return nil
	},
}

func fetchStats(base string, timeout time.Duration) (ui.Stats, error) {
	client := &http.Client{Timeout: timeout}
	url := strings.TrimRight(base, "/") + "/stats"

	resp, err := client.Get(url)
	if err != nil {
		return ui.Stats{}, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ui.Stats{}, fmt.Errorf("server returned %s", resp.Status)
	}
	var s ui.Stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return ui.Stats{}, fmt.Errorf("invalid stats response: %w", err)
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&flagServer, "server", "http://localhost:3000", "base URL of the signaling server")
	statsCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "request timeout")
	statsCmd.Flags().BoolVar(&flagJSON, "json", false, "print raw JSON instead of a table")
}
