package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/exa-analytics/exa/internal/dataset"
)

func (a *app) watchCmd() *cobra.Command {
	var dir string
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch [flags]",
		Short: "Log a summary each time a saved dataset changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context(), a.dir(dir), settle)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (default: save directory)")
	cmd.Flags().DurationVar(&settle, "settle", 200*time.Millisecond, "delay after the last change before reloading")
	return cmd
}

func (a *app) watch(ctx context.Context, dir string, settle time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.InfoContext(ctx, "watching", "dir", dir)
	pending := map[string]time.Time{}
	tick := time.NewTicker(max(settle/2, time.Millisecond))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if name, ok := datasetName(event.Name); ok {
				pending[name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "error watching directory", "err", err)
		case now := <-tick.C:
			for name, at := range pending {
				if now.Sub(at) < settle {
					continue
				}
				delete(pending, name)
				a.summarize(ctx, dir, name)
			}
		}
	}
}

func (a *app) summarize(ctx context.Context, dir, name string) {
	d, err := dataset.New(dataset.WithName(name), dataset.WithConfig(a.cfg), dataset.WithResolver(a.reg))
	if err == nil {
		_, err = d.Load(name, dir)
	}
	if err == nil {
		_, err = d.Data()
	}
	if err != nil {
		slog.WarnContext(ctx, "dataset changed but does not load", "name", name, "err", err)
		return
	}
	mem, _ := d.Memory()
	slog.InfoContext(ctx, "dataset changed", "dataset", d.String(), "bytes", mem)
}

// datasetName returns the dataset a saved file belongs to.
func datasetName(path string) (string, bool) {
	base := filepath.Base(path)
	for _, ext := range []string{dataset.ValuesExt, dataset.ManifestExt, dataset.DataExt} {
		if name, ok := strings.CutSuffix(base, ext); ok && name != "" && !strings.HasPrefix(name, ".") {
			return name, true
		}
	}
	return "", false
}
