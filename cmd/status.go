package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/imtti/internal/clientconfig"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/output"
)

// readyNoticeDelay is how long status waits for the reachability check
// before telling the user it is still waiting.
const readyNoticeDelay = 250 * time.Millisecond

// statusReport is the --json shape of `imtti status`.
type statusReport struct {
	APIURL  string                    `json:"api_url"`
	Online  bool                      `json:"online"`
	Store   string                    `json:"store"`
	Counts  map[models.Collection]int `json:"counts"`
	Session *clientconfig.Session     `json:"session,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show API reachability, local store contents and the saved login",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := a.context(cmd)
		defer cancel()

		jsonOut, _ := outputMode(cmd.Flags())
		select {
		case <-a.client.Ready():
		case <-time.After(readyNoticeDelay):
			if !jsonOut {
				fmt.Fprintf(output.Stderr, "waiting for API at %s ...\n", a.cfg.BaseURL())
			}
		case <-ctx.Done():
		}

		report := statusReport{
			APIURL: a.cfg.BaseURL(),
			Online: a.client.Wait(ctx),
			Store:  a.storePath,
		}
		report.Counts, err = a.client.Local().Counts(ctx)
		if err != nil {
			return err
		}
		report.Session, err = clientconfig.LoadSession()
		if err != nil {
			output.Warning("could not read saved session: %v", err)
		}

		if jsonOut {
			return output.JSON(report)
		}

		source := "local"
		if report.Online {
			source = "remote"
		}
		output.Info("API:   %s %s", report.APIURL, output.SourceBadge(source))
		if !report.Online {
			output.Info("       unreachable; reads use the local store")
		}
		output.Info("Store: %s", report.Store)
		for _, c := range models.AllCollections {
			output.Info("  %-14s %d", c, report.Counts[c])
		}

		if s := report.Session; s != nil {
			when := s.LoggedInAt
			if t, err := time.Parse(time.RFC3339, s.LoggedInAt); err == nil {
				when = output.FormatTimeAgo(t)
			}
			who := s.Name
			if who == "" {
				who = s.Identifier
			}
			output.Info("%s", output.SectionHeader("logged in"))
			output.Info("  %s %s (id %s), %s", s.Role, who, s.ID, when)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if short, _ := cmd.Flags().GetBool("short"); short {
			output.Info("%s", version)
			return
		}
		output.Info("imtti version %s", version)
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Output only version string")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
