package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/history"
	"github.com/exa-analytics/exa/internal/script"
	"github.com/exa-analytics/exa/internal/table"
)

type fetchFlags struct {
	name       string
	dir        string
	args       []string
	kws        []string
	index      string
	indexes    []string
	columns    []string
	categories []string
	cardinal   string
	scripts    []string
	commit     bool
	message    string
}

func (a *app) fetchCmd() *cobra.Command {
	var f fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch [flags] source",
		Short: "Materialize a dataset from a source and save it",
		Long: `Resolve the dotted source name, call it with the given arguments, validate
the result and save it as <name>.yml and <name>.qet.

Sources are the registered readers (exa.io.read_csv, exa.io.read_json,
exa.io.read_parquet), the reference loaders (exa.reference.load_isotopes,
...) and the exported functions of --script files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd, args[0], &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "dataset name (default: last element of the source)")
	fl.StringVar(&f.dir, "dir", "", "directory to save into (default: save directory)")
	fl.StringArrayVar(&f.args, "arg", nil, "positional argument passed to the source, as YAML")
	fl.StringArrayVar(&f.kws, "kw", nil, "keyword argument key=value passed to the source, value as YAML")
	fl.StringVar(&f.index, "index", "", "name of the row index")
	fl.StringSliceVar(&f.indexes, "indexes", nil, "columns that must be unique together")
	fl.StringSliceVar(&f.columns, "columns", nil, "columns the table must contain")
	fl.StringArrayVar(&f.categories, "category", nil, "column=dtype to cache as categorical")
	fl.StringVar(&f.cardinal, "cardinal", "", "join key shared with other datasets")
	fl.StringArrayVar(&f.scripts, "script", nil, "Go script whose functions become sources")
	fl.BoolVar(&f.commit, "commit", false, "commit the saved files to the save directory's git history")
	fl.StringVarP(&f.message, "message", "m", "", "commit message")
	return cmd
}

func (a *app) fetch(cmd *cobra.Command, source string, f *fetchFlags) error {
	var resolver dataset.Resolver = a.reg
	if len(f.scripts) > 0 {
		s, err := script.New()
		if err != nil {
			return err
		}
		for _, path := range f.scripts {
			if _, err := s.LoadFile(path); err != nil {
				return err
			}
		}
		defer func() { _ = s.WriteOutput(cmd.ErrOrStderr()) }()
		resolver = dataset.MultiResolver{a.reg, s}
	}
	callArgs := make([]any, len(f.args))
	for i, s := range f.args {
		callArgs[i] = parseScalar(s)
	}
	callKws := map[string]any{}
	for _, kv := range f.kws {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --kw %q, want key=value", kv)
		}
		callKws[k] = parseScalar(v)
	}
	cats := map[string]table.DType{}
	for _, cv := range f.categories {
		col, typ, ok := strings.Cut(cv, "=")
		if !ok || col == "" {
			return fmt.Errorf("invalid --category %q, want column=dtype", cv)
		}
		d, err := table.ParseDType(typ)
		if err != nil {
			return fmt.Errorf("invalid --category %q: %w", cv, err)
		}
		cats[col] = d
	}
	name := f.name
	if name == "" {
		name = source[strings.LastIndex(source, ".")+1:]
	}
	opts := []dataset.Option{
		dataset.WithName(name),
		dataset.WithConfig(a.cfg),
		dataset.WithResolver(resolver),
		dataset.WithSourceName(source),
		dataset.WithCallArgs(callArgs...),
		dataset.WithCallKws(callKws),
		dataset.WithIndex(f.index),
		dataset.WithIndexes(f.indexes...),
		dataset.WithColumns(f.columns...),
		dataset.WithCategories(cats),
	}
	if f.cardinal != "" {
		opts = append(opts, dataset.WithCardinal(f.cardinal))
	}
	d, err := dataset.New(opts...)
	if err != nil {
		return err
	}
	if _, err := d.Data(); err != nil {
		return err
	}
	if f.commit {
		if f.dir != "" {
			return fmt.Errorf("--commit saves into the save directory, drop --dir")
		}
		r, err := history.OpenConfig(a.cfg)
		if err != nil {
			return err
		}
		h, err := r.Save(d, f.message)
		if err != nil {
			return err
		}
		slog.Info("committed", "name", name, "commit", h)
	} else if _, err := d.Save("", a.dir(f.dir)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), d)
	return err
}

// parseScalar decodes s as a YAML scalar so that numbers and booleans keep
// their type. Anything that fails to decode stays a string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	default:
		return s
	}
}
