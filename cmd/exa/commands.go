package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/exa-analytics/exa/internal/archive"
	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/history"
	"github.com/exa-analytics/exa/internal/reference"
)

func (a *app) referenceCmd() *cobra.Command {
	var dir string
	var commit bool
	cmd := &cobra.Command{
		Use:   "reference [flags]",
		Short: "Save the bundled isotopes, constants and units datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := reference.Datasets(a.reg, dataset.WithConfig(a.cfg))
			if err != nil {
				return err
			}
			var r *history.Repo
			if commit {
				if r, err = history.Open(a.dir(dir), a.cfg.GitAuthor, a.cfg.GitEmail); err != nil {
					return err
				}
			}
			for _, d := range ds {
				if r != nil {
					if _, err := r.Save(d, "save reference "+d.Name); err != nil {
						return err
					}
				} else if _, err := d.Save("", a.dir(dir)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to save into (default: save directory)")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the saved files")
	return cmd
}

func (a *app) packCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "pack [flags] tarball name...",
		Short: "Archive saved datasets into a gzip compressed tarball",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := archive.PackFile(args[0], a.dir(dir), args[1:]...); err != nil {
				return err
			}
			slog.Info("packed", "tarball", args[0], "datasets", len(args)-1)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding the datasets (default: save directory)")
	return cmd
}

func (a *app) unpackCmd() *cobra.Command {
	var dir string
	var list bool
	cmd := &cobra.Command{
		Use:   "unpack [flags] tarball",
		Short: "Extract the datasets of a tarball",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if list {
				ds, err := archive.Unpack(f, dataset.WithConfig(a.cfg), dataset.WithResolver(a.reg))
				if err != nil {
					return err
				}
				for _, d := range ds {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			}
			names, err := archive.Extract(f, a.dir(dir))
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to extract into (default: save directory)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the datasets instead of extracting them")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history [flags] name",
		Short: "List the commits that changed a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := history.OpenConfig(a.cfg)
			if err != nil {
				return err
			}
			commits, err := r.History(args[0], n)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range commits {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Hash[:12], c.Date.Format(time.DateTime), c.Author, c.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 0, "maximum number of commits")
	return cmd
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of dataset manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := dataset.ManifestSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
