package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dhmunro/dudley/core/layoutfmt"
	"github.com/dhmunro/dudley/core/layoutfmt/formatter"
)

func watchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-resolve a layout whenever it changes and print what moved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()
			// Editors often replace the file, so watch its directory.
			if err := watcher.Add(filepath.Dir(args[0])); err != nil {
				return err
			}

			w := &layoutWatcher{
				path:     args[0],
				out:      cmd.OutOrStdout(),
				useColor: s.useColor,
				load: func() (*layoutfmt.Document, error) {
					r, err := s.resolve(args[0])
					if err != nil {
						return nil, err
					}
					return layoutfmt.Canonicalize(r.Layout, r.Placement), nil
				},
			}
			return w.run(ctx, watcher.Events, watcher.Errors)
		},
	}
}

// layoutWatcher keeps the last good document and prints the difference to
// each new one.
type layoutWatcher struct {
	path     string
	out      io.Writer
	useColor bool
	load     func() (*layoutfmt.Document, error)
	last     *layoutfmt.Document
}

func (w *layoutWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	w.reload()
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			FormatError(w.out, err, w.useColor)
		}
	}
}

// reload resolves the file again. A failure is reported and the previous
// document kept, so the next diff is against the last good layout.
func (w *layoutWatcher) reload() {
	d, err := w.load()
	if err != nil {
		FormatError(w.out, err, w.useColor)
		return
	}
	if w.last == nil {
		formatter.FormatTree(w.out, d, w.useColor)
	} else {
		_, _ = fmt.Fprintf(w.out, "--- %s changed\n", w.path)
		_, _ = fmt.Fprint(w.out, formatter.FormatDiff(formatter.Diff(w.last, d), w.useColor))
	}
	w.last = d
}
