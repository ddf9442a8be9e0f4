package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 200 * time.Millisecond

func newWatchCmd(opts *options) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the diagram of a local document whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			rebuild := func() {
				resp, err := flags.build(ctx)
				if err != nil {
					fmt.Fprintf(out, "[%s] build failed: %v\n", time.Now().Format(time.TimeOnly), err)
					return
				}
				fmt.Fprintf(out, "[%s] rebuilt %s\n", time.Now().Format(time.TimeOnly), flags.file)
				if err := printDiagram(out, opts.output, resp); err != nil {
					fmt.Fprintf(out, "failed to print diagram: %v\n", err)
				}
			}

			rebuild()
			return watchFile(ctx, flags.file, watchDebounce, rebuild)
		},
	}
	flags.register(cmd)
	return cmd
}

// watchFile calls onChange after path was written, created or renamed into
// place and no further change arrived within debounce. The parent directory is
// watched so editors that replace the file are followed. It returns when ctx
// is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerC = timer.C

		case <-timerC:
			timer = nil
			timerC = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
