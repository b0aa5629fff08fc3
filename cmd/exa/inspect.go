package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/history"
	"github.com/exa-analytics/exa/internal/table"
)

func (a *app) inspectCmd() *cobra.Command {
	var dir, rev string
	var groupBy []string
	var head int
	cmd := &cobra.Command{
		Use:   "inspect [flags] name",
		Short: "Describe a saved dataset",
		Long:  "Load a saved dataset, validate it and print its configuration, column types and memory usage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.load(args[0], dir, rev)
			if err != nil {
				return err
			}
			return describe(cmd.OutOrStdout(), d, groupBy, head)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to load from (default: save directory)")
	cmd.Flags().StringVar(&rev, "rev", "", "git revision of the save directory to load")
	cmd.Flags().StringSliceVar(&groupBy, "groupby", nil, "columns to group by (default: the dataset indexes)")
	cmd.Flags().IntVar(&head, "head", 0, "print the first rows as JSON lines")
	return cmd
}

// load reads a dataset from dir, or from the save directory's history at
// rev.
func (a *app) load(name, dir, rev string) (*dataset.Dataset, error) {
	d, err := dataset.New(dataset.WithName(name), dataset.WithConfig(a.cfg), dataset.WithResolver(a.reg))
	if err != nil {
		return nil, err
	}
	if rev != "" {
		r, err := history.Open(a.dir(dir), a.cfg.GitAuthor, a.cfg.GitEmail)
		if err != nil {
			return nil, err
		}
		return d, r.Load(d, name, rev)
	}
	_, err = d.Load(name, a.dir(dir))
	return d, err
}

func describe(w io.Writer, d *dataset.Dataset, groupBy []string, head int) error {
	p, err := d.Data()
	if err != nil {
		return err
	}
	m := d.Manifest()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", m.Name)
	if m.Source != "" {
		fmt.Fprintf(tw, "source:\t%s\n", m.Source)
	}
	if len(m.Indexes) > 0 {
		fmt.Fprintf(tw, "indexes:\t%s\n", strings.Join(m.Indexes, ", "))
	}
	if m.Cardinal != "" {
		fmt.Fprintf(tw, "cardinal:\t%s\n", m.Cardinal)
	}
	t, ok := p.Table()
	if !ok {
		fmt.Fprintf(tw, "payload:\t%s\n", p)
		return tw.Flush()
	}
	rows, cols := t.Shape()
	fmt.Fprintf(tw, "shape:\t(%d, %d)\n", rows, cols)
	if t.IndexName() != "" {
		fmt.Fprintf(tw, "index:\t%s\n", t.IndexName())
	}
	mem := t.MemoryUsage()
	fmt.Fprintln(tw, "\ncolumn\tdtype\tbytes")
	for _, c := range t.Columns() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c, t.DType(c), mem[c])
	}
	fmt.Fprintf(tw, "total\t\t%d\n", t.Memory())
	if len(groupBy) == 0 {
		groupBy = d.Indexes
	}
	if len(groupBy) > 0 && !slices.ContainsFunc(groupBy, func(c string) bool { return !t.HasColumn(c) }) {
		g, err := d.GroupBy(groupBy...)
		if err != nil {
			return err
		}
		if g != nil {
			fmt.Fprintf(tw, "\ngroups by %s:\t%d\n", strings.Join(groupBy, ", "), g.NGroups())
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if head <= 0 {
		return nil
	}
	rows = min(rows, head)
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	fmt.Fprintln(w)
	return table.WriteJSONLines(w, t.Take(idx))
}
