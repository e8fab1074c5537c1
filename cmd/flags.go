package cmd

import (
	"time"

	"github.com/spf13/pflag"
)

// globalFlags are shared by every command.
var globalFlags = newGlobalFlags()

func newGlobalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("global", pflag.ContinueOnError)
	fs.Bool("json", false, "output JSON")
	fs.Bool("markdown", false, "render output as markdown")
	fs.String("config", "", "config file (default ~/.config/imtti/config.yaml)")
	fs.String("api", "", "API base URL, e.g. http://localhost:3000/api (env: IMTTI_API_URL)")
	fs.String("store", "", "local store database path (env: IMTTI_STORE_PATH)")
	fs.Bool("ephemeral", false, "use an in-memory local store that is discarded on exit")
	fs.Duration("timeout", 0, "overall deadline per command (default from config, 30s)")
	fs.BoolP("verbose", "v", false, "log API and store activity to stderr")
	return fs
}

// outputMode reads --json / --markdown.
func outputMode(fs *pflag.FlagSet) (jsonOut, markdown bool) {
	jsonOut, _ = fs.GetBool("json")
	markdown, _ = fs.GetBool("markdown")
	return jsonOut, markdown
}

func flagString(fs *pflag.FlagSet, name string) string {
	v, _ := fs.GetString(name)
	return v
}

func flagDuration(fs *pflag.FlagSet, name string) time.Duration {
	v, _ := fs.GetDuration(name)
	return v
}

func flagBool(fs *pflag.FlagSet, name string) bool {
	v, _ := fs.GetBool(name)
	return v
}
