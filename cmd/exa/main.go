// Package main is the exa command line tool.
//
// exa builds datasets from registered sources, saves them to the save
// directory as <name>.yml and <name>.qet, and inspects, archives and
// versions them. Configuration is read from ~/.exa/config.yml and
// overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/exa-analytics/exa/internal/config"
	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/reference"
)

// Version is set at link time.
var Version string

// app holds the state shared by subcommands once the root has run.
type app struct {
	level      slog.LevelVar
	configPath string
	logLevel   string
	saveDir    string
	resources  string
	cfg        *config.Config
	reg        *dataset.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "exa: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "exa",
		Short:         "Build, inspect and version datasets.",
		Long:          "exa materializes tables from registered sources, validates them against their declared schema and keeps them on disk as a YAML manifest plus a Parquet file.",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", filepath.Join(config.Home(), config.FileName), "configuration file")
	f.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&a.saveDir, "savedir", "", "save directory, overrides the configuration")
	f.StringVar(&a.resources, "resources", "", "reference data directory, overrides the configuration")
	root.AddCommand(
		a.fetchCmd(),
		a.inspectCmd(),
		a.referenceCmd(),
		a.packCmd(),
		a.unpackCmd(),
		a.historyCmd(),
		a.schemaCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      &a.level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.saveDir != "" {
		cfg.SaveDir = a.saveDir
	}
	if a.resources != "" {
		cfg.ResourceDir = a.resources
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	config.SetDefault(cfg)
	a.cfg = cfg
	a.reg = dataset.DefaultRegistry
	if _, err := a.reg.Resolve("exa.reference.load_isotopes"); err != nil {
		if err := reference.Register(a.reg, cfg); err != nil {
			return err
		}
	}
	slog.Debug("configured", "savedir", cfg.SaveDir, "resources", cfg.ResourceDir, "command", cmd.Name())
	return nil
}

// dir returns d when set, else the save directory.
func (a *app) dir(d string) string {
	if d != "" {
		return d
	}
	return a.cfg.SaveDir
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown version)"
}
