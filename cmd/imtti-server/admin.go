package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/marcus/imtti/internal/api"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		runAdminCreate(args[1:])
	case "logins":
		runAdminLogins(args[1:])
	case "stats":
		runAdminStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: imtti-server admin <command> [flags]

Commands:
  create  Create an admin account
  logins  Show recent login attempts
  stats   Show record counts per collection`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		dbPath = api.LoadConfig().DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

const dbFlagUsage = "path to the server database (default: from IMTTI_DB_PATH or ./data/imtti.db)"

func runAdminCreate(args []string) {
	fs := pflag.NewFlagSet("admin create", pflag.ExitOnError)
	email := fs.String("email", "", "admin email address")
	password := fs.String("password", "", "admin password (default: IMTTI_ADMIN_PASSWORD)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *password == "" {
		*password = os.Getenv("IMTTI_ADMIN_PASSWORD")
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "error: --email and --password are required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	created, err := store.EnsureAdmin(*email, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	normalized := strings.ToLower(strings.TrimSpace(*email))
	if !created {
		fmt.Printf("admin %s already exists\n", normalized)
		return
	}
	fmt.Printf("created admin %s\n", normalized)
}

func runAdminLogins(args []string) {
	fs := pflag.NewFlagSet("admin logins", pflag.ExitOnError)
	role := fs.String("role", "", "filter by role: admin, center or student")
	limit := fs.Int("limit", 20, "maximum events to show")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	events, err := store.RecentLoginEvents(*role, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Println("no login attempts recorded")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tROLE\tIDENTIFIER\tRESULT\tADDR")
	for _, e := range events {
		result := "denied"
		if e.Success {
			result = "ok"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.Role, e.Identifier, result, e.RemoteAddr)
	}
	tw.Flush()
}

func runAdminStats(args []string) {
	fs := pflag.NewFlagSet("admin stats", pflag.ExitOnError)
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	for _, c := range models.AllCollections {
		n, err := store.CountRecords(c)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-14s %d\n", c, n)
	}
}
