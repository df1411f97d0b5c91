package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"pkt.systems/mdpane/core"
	"pkt.systems/mdpane/internal/appconfig"
	"pkt.systems/mdpane/internal/eventbus"
	"pkt.systems/mdpane/internal/filewatch"
	"pkt.systems/mdpane/internal/format"
	"pkt.systems/mdpane/internal/persist"
	"pkt.systems/mdpane/internal/tabstore"
	"pkt.systems/mdpane/internal/uiloop"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	var workspace string
	var mode string
	cmd := &cobra.Command{
		Use:   "watch <file>...",
		Short: "Open files in a headless session and follow changes on disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if workspace != "" {
				cfg.Workspace = workspace
			}
			viewMode, err := schema.ParseMode(mode)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cmd.OutOrStdout(), cfg, viewMode, args)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config path (default ~/.mdpane/config.yaml)")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace name for saved state")
	cmd.Flags().StringVar(&mode, "mode", "none", "view mode: none, split-vertical, split-horizontal, diff")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, cfg appconfig.Config, mode schema.Mode, paths []string) error {
	logger := pslog.Ctx(ctx)
	state, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return err
	}
	sessionCfg := cfg.SessionConfig()
	store := tabstore.New(tabstore.Options{
		HistoryMax: sessionCfg.HistoryMax,
		State:      state,
		Workspace:  cfg.Workspace,
		Logger:     logger,
	})
	if _, err := store.Load(); err != nil {
		logger.Warn("watch state load failed", "workspace", cfg.Workspace, "err", err)
	}

	loop := uiloop.New(logger)
	bus := eventbus.New(logger)
	events, stopEvents := bus.Subscribe(eventbus.AllTabs)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderer := format.NewPlainRenderer()
		for event := range events {
			writeLines(out, renderer.FormatEvent(event))
		}
	}()
	defer func() {
		stopEvents()
		wg.Wait()
	}()

	var session *core.Session
	var watcher *filewatch.Watcher
	if cfg.Watch.Enabled {
		watcher, err = filewatch.New(store, loop, filewatch.Options{
			Logger: logger,
			OnReload: func(id schema.TabID, changed bool, err error) {
				if err != nil || !changed {
					return
				}
				tab, ok := store.Tab(id)
				if !ok {
					return
				}
				if buf, ok := session.Buffers().Peek(id); ok {
					_, _ = fmt.Fprintf(out, "reloaded %s (%s)\n", tab.Title, buf.Lexer())
				} else {
					_, _ = fmt.Fprintf(out, "reloaded %s\n", tab.Title)
				}
				writeLines(out, format.FormatContent(tab.Content))
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
	}

	setup := func() error {
		for _, path := range paths {
			if err := openOrReload(store, path); err != nil {
				return err
			}
			if watcher != nil {
				if err := watcher.Add(path); err != nil {
					return err
				}
			}
		}
		controller := core.NewModeController(mode, logger)
		session, err = core.NewSession(sessionCfg, core.SessionDeps{
			Store:     store,
			Scheduler: loop,
			Surfaces:  core.NewMemorySurfaces(true),
			Mode:      controller,
			EventSink: bus,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		return session.Start()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	setupErr := make(chan error, 1)
	loop.Post(func() {
		if err := setup(); err != nil {
			setupErr <- err
			cancel()
		}
	})
	if watcher != nil {
		go func() {
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watch stopped", "err", err)
			}
		}()
	}
	logger.Info("watch start", "files", len(paths), "workspace", cfg.Workspace, "mode", mode)
	runErr := loop.Run(runCtx)

	// Run has returned on this goroutine, so it still owns the session.
	if session != nil {
		store.SetMode(session.Mode().Mode())
		session.Close()
	}
	if err := store.Save(); err != nil {
		logger.Warn("watch state save failed", "workspace", cfg.Workspace, "err", err)
	}
	select {
	case err := <-setupErr:
		return err
	default:
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// openOrReload opens path, or reloads it when the saved workspace already
// has a tab for it.
func openOrReload(store *tabstore.Store, path string) error {
	tab, err := store.OpenFile(path)
	if err == nil {
		return store.Activate(tab.ID)
	}
	if !errors.Is(err, tabstore.ErrTabExists) {
		return err
	}
	id, ok := store.FindByPath(absPath(path))
	if !ok {
		return err
	}
	if _, err := store.ReloadFromDisk(id); err != nil {
		return err
	}
	return store.Activate(id)
}
