package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/imtti/internal/clientconfig"
	"github.com/marcus/imtti/internal/fallback"
	"github.com/marcus/imtti/internal/localstore"
	"github.com/marcus/imtti/internal/output"
	"github.com/marcus/imtti/internal/remote"
)

// app holds what a command needs to talk to the API and the local store.
type app struct {
	cfg       *clientconfig.Config
	client    *fallback.Client
	store     io.Closer
	storePath string
	logger    *slog.Logger
	timeout   time.Duration
}

// configError marks failures that come from configuration or flags rather
// than from the API.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*clientconfig.Config, error) {
	fs := cmd.Flags()
	cfg, err := clientconfig.Load(flagString(fs, "config"))
	if err != nil {
		return nil, &configError{err}
	}
	if v := flagString(fs, "api"); v != "" {
		cfg.APIURL = v
	}
	if v := flagString(fs, "store"); v != "" {
		cfg.StorePath = v
	}
	if d := flagDuration(fs, "timeout"); d > 0 {
		cfg.Timeout = d.String()
	}
	return cfg, nil
}

// newApp builds the fallback client for a command. The caller must Close it.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, flagBool(cmd.Flags(), "verbose"))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		timeout: cfg.RequestTimeout(),
	}

	var store localstore.Store
	if flagBool(cmd.Flags(), "ephemeral") {
		mem := localstore.NewMemory()
		store, a.store, a.storePath = mem, mem, "(in memory)"
	} else {
		path, err := cfg.ResolveStorePath()
		if err != nil {
			return nil, &configError{err}
		}
		db, err := localstore.Open(path)
		if err != nil {
			return nil, &configError{fmt.Errorf("open local store: %w", err)}
		}
		store, a.store, a.storePath = db, db, db.Path()
	}

	api := remote.New(cfg.BaseURL(), a.timeout)
	api.UserAgent = "imtti/" + version

	a.client = fallback.New(api, localstore.NewCollections(store, logger),
		fallback.WithLogger(logger),
		fallback.WithProbeTimeout(cfg.ProbeTimeoutDuration()),
	)
	return a, nil
}

// context returns a context bounded by the configured timeout.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// newLogger writes to stderr. Commands print their own fallback warnings, so
// the default level is error.
func newLogger(cfg *clientconfig.Config, verbose bool) *slog.Logger {
	level := slog.LevelError
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(output.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(output.Stderr, opts)
	}
	return slog.New(handler)
}

// reportError prints a command failure in the selected output mode.
func reportError(err error) {
	jsonOut, _ := outputMode(globalFlags)
	code := output.ErrCodeInvalidInput
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		code = output.ErrCodeConfigError
	}
	if jsonOut {
		output.JSONError(code, err.Error())
		return
	}
	output.Error("%v", err)
}
