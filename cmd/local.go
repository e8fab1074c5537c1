package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/imtti/internal/fallback"
	"github.com/marcus/imtti/internal/localstore"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/output"
	"github.com/marcus/imtti/internal/suggest"
)

var localCmd = &cobra.Command{
	Use:     "local",
	Short:   "Inspect or clear the local store",
	GroupID: "system",
	Long: `The local store holds what offline reads return: records created while the
API was reachable. These commands never contact the API.`,
}

// openLocal opens the configured local store without starting a client.
func openLocal(cmd *cobra.Command) (*localstore.Collections, func() error, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, "", err
	}
	path, err := cfg.ResolveStorePath()
	if err != nil {
		return nil, nil, "", &configError{err}
	}
	db, err := localstore.Open(path)
	if err != nil {
		return nil, nil, "", &configError{fmt.Errorf("open local store: %w", err)}
	}
	logger := newLogger(cfg, flagBool(cmd.Flags(), "verbose"))
	return localstore.NewCollections(db, logger), db.Close, db.Path(), nil
}

var localShowCmd = &cobra.Command{
	Use:       "show [collection]",
	Short:     "Show local records, or per-collection counts with no argument",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: collectionNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cols, closeFn, path, err := openLocal(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		jsonOut, _ := outputMode(cmd.Flags())

		if len(args) == 0 {
			counts, err := cols.Counts(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return output.JSON(map[string]any{"path": path, "counts": counts})
			}
			output.Info("Local store: %s", path)
			for _, c := range models.AllCollections {
				output.Info("  %-14s %d", c, counts[c])
			}
			return nil
		}

		name, err := parseCollectionArg(args[0])
		if err != nil {
			return err
		}
		records, err := cols.ReadLocal(cmd.Context(), name)
		if err != nil {
			return err
		}
		return renderList(cmd, "Local "+string(name), fallback.Result{Value: records, Source: fallback.SourceLocal})
	},
}

var localClearCmd = &cobra.Command{
	Use:       "clear <collection>",
	Short:     "Delete the local copy of a collection (or all with --all)",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: collectionNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")

		var targets []models.Collection
		switch {
		case all && len(args) == 0:
			targets = models.AllCollections
		case !all && len(args) == 1:
			name, err := parseCollectionArg(args[0])
			if err != nil {
				return err
			}
			targets = []models.Collection{name}
		default:
			return fmt.Errorf("give exactly one collection, or --all")
		}

		if !yes {
			if !isInteractive() {
				return fmt.Errorf("refusing to clear without --yes")
			}
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete local %s?", describeTargets(targets))).
				Description("Records on the server are not affected.").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				output.Info("Aborted")
				return nil
			}
		}

		cols, closeFn, _, err := openLocal(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		for _, name := range targets {
			if err := cols.Clear(cmd.Context(), name); err != nil {
				return err
			}
		}
		output.Success("Cleared local %s", describeTargets(targets))
		return nil
	},
}

func describeTargets(targets []models.Collection) string {
	if len(targets) == 1 {
		return string(targets[0])
	}
	return "store"
}

// parseCollectionArg is models.ParseCollection with a "did you mean" hint.
func parseCollectionArg(arg string) (models.Collection, error) {
	name, err := models.ParseCollection(arg)
	if err == nil {
		return name, nil
	}
	if near := suggest.Closest(arg, collectionNames()); len(near) > 0 {
		return "", fmt.Errorf("%w (did you mean %s?)", err, strings.Join(near, " or "))
	}
	return "", err
}

func collectionNames() []string {
	out := make([]string, len(models.AllCollections))
	for i, c := range models.AllCollections {
		out[i] = string(c)
	}
	return out
}

func init() {
	localClearCmd.Flags().Bool("all", false, "clear every collection")
	localClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	localCmd.AddCommand(localShowCmd)
	localCmd.AddCommand(localClearCmd)
	rootCmd.AddCommand(localCmd)
}
