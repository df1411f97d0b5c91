package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"pkt.systems/mdpane/internal/appconfig"
	"pkt.systems/mdpane/internal/eventbus"
	"pkt.systems/mdpane/internal/format"
	"pkt.systems/mdpane/internal/script"
	"pkt.systems/pslog"
)

func newReplayCmd() *cobra.Command {
	var cfgPath string
	var trace bool
	var verbose bool
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>...",
		Short: "Replay scripted editing sessions and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range args {
				if err := replayFile(cmd, path, cfg, trace, verbose); err != nil {
					failed++
					pslog.Ctx(cmd.Context()).Warn("replay failed", "script", path, "err", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config path (default ~/.mdpane/config.yaml)")
	cmd.Flags().BoolVar(&trace, "trace", false, "print session events")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "include position captures in the trace")
	return cmd
}

func replayFile(cmd *cobra.Command, path string, cfg appconfig.Config, trace, verbose bool) error {
	out := cmd.OutOrStdout()
	s, err := script.Load(path)
	if err != nil {
		return err
	}
	logger := pslog.Ctx(cmd.Context())
	bus := eventbus.New(logger)
	opts := script.Options{Logger: logger, Config: cfg.SessionConfig(), EventSink: bus}

	var wg sync.WaitGroup
	stop := func() {}
	if trace {
		events, cancel := bus.Subscribe(eventbus.AllTabs)
		stop = cancel
		renderer := &format.PlainRenderer{Verbose: verbose}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range events {
				writeLines(out, renderer.FormatEvent(event))
			}
		}()
	}
	result, runErr := script.Run(cmd.Context(), s, opts)
	stop()
	wg.Wait()
	if runErr != nil {
		_, _ = fmt.Fprintf(out, "FAIL %s: %v\n", s.Name, runErr)
		return runErr
	}
	_, _ = fmt.Fprintf(out, "ok   %s (%d steps, %d events)\n", s.Name, result.Steps, len(result.Events))
	return nil
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}
