package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/imtti/internal/clientconfig"
	"github.com/marcus/imtti/internal/output"
)

var configDefaults = map[string]string{
	"api_url":       clientconfig.DefaultAPIURL,
	"store_path":    "~/.config/imtti/local.db",
	"timeout":       clientconfig.DefaultTimeout.String(),
	"probe_timeout": clientconfig.DefaultProbeTimeout.String(),
	"log_level":     "error",
	"log_format":    "text",
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change the client configuration file",
	GroupID: "system",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the values stored in the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := clientconfig.LoadFile(flagString(cmd.Flags(), "config"))
		if err != nil {
			return &configError{err}
		}

		values := make(map[string]string, len(clientconfig.Keys))
		for _, key := range clientconfig.Keys {
			values[key], _ = cfg.Get(key)
		}
		if jsonOut, _ := outputMode(cmd.Flags()); jsonOut {
			return output.JSON(values)
		}
		for _, key := range clientconfig.Keys {
			v := values[key]
			if v == "" {
				v = configDefaults[key] + " (default)"
			}
			output.Info("%-14s %s", key, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value; an empty value restores the default",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		path := flagString(cmd.Flags(), "config")

		cfg, err := clientconfig.LoadFile(path)
		if err != nil {
			return &configError{err}
		}
		if err := cfg.Set(key, val); err != nil {
			return &configError{err}
		}
		if err := clientconfig.Save(path, cfg); err != nil {
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
