package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"yessir/internal/backend/backendtest"
	"yessir/internal/domain"
	"yessir/internal/logging"
)

func sayCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "say <command...>",
		Short: "Interpret a typed command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			services.Controller.Init(ctx)
			state, err := services.Controller.ProcessCommand(ctx, strings.Join(args, " "))
			printState(cmd.OutOrStdout(), state)
			return err
		},
	}
}

func recordCmd(opts *globalOptions) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a spoken command from the microphone",
		Long: `Records from the configured ffmpeg input until --duration elapses or
Ctrl-C is pressed, then transcribes and interprets the recording.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			services.Controller.Init(ctx)
			if err := services.Controller.StartRecording(ctx); err != nil {
				printState(cmd.OutOrStdout(), services.Controller.State())
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Listening... (Ctrl-C to stop)")

			waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(waitCtx, duration)
				defer cancel()
			}
			<-waitCtx.Done()
			stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Transcribing...")
			state, err := services.Controller.StopRecording(ctx)
			printState(cmd.OutOrStdout(), state)
			return err
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: wait for Ctrl-C)")
	return cmd
}

func itemsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items [todo|note]...",
		Short: "List todos and notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}

			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			lists := make([][]domain.Item, len(kinds))
			group, ctx := errgroup.WithContext(cmd.Context())
			for index, kind := range kinds {
				index, kind := index, kind
				group.Go(func() error {
					items, err := services.Cache.LoadIfNeeded(ctx, kind)
					if err != nil {
						return err
					}
					lists[index] = items
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for index, kind := range kinds {
				fmt.Fprintf(out, "%s (%d)\n", kind.Plural(), len(lists[index]))
				for _, item := range lists[index] {
					fmt.Fprintf(out, "  %s  %s  %s\n", item.ID, formatCreated(item.CreatedAt), item.Label())
				}
			}
			return nil
		},
	}
}

func deleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <todo|note> <id>",
		Short: "Delete a todo or note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args[:1])
			if err != nil {
				return err
			}

			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			if _, err := services.Cache.LoadIfNeeded(ctx, kinds[0]); err != nil {
				return err
			}
			if err := services.Cache.DeleteItem(ctx, args[1], kinds[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kinds[0], args[1])
			return nil
		},
	}
}

func keywordsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage place aliases used for directions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Cache.LoadKeywords(cmd.Context()); err != nil {
				return err
			}
			printKeywords(cmd.OutOrStdout(), services.Cache.Keywords())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <keyword> <address...>",
		Short: "Save a place alias",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Cache.AddKeyword(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			printKeywords(cmd.OutOrStdout(), services.Cache.Keywords())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <keyword>",
		Aliases: []string{"delete"},
		Short:   "Remove a place alias",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			if err := services.Cache.LoadKeywords(ctx); err != nil {
				return err
			}
			if err := services.Cache.DeleteKeyword(ctx, args[0]); err != nil {
				return err
			}
			printKeywords(cmd.OutOrStdout(), services.Cache.Keywords())
			return nil
		},
	})

	return cmd
}

func resolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <place...>",
		Short: "Show the address a spoken place resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.services()
			if err != nil {
				return err
			}
			defer services.Close()

			services.Controller.Init(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), services.Controller.ResolveAddress(strings.Join(args, " ")))
			return nil
		},
	}
}

func fakeBackendCmd(opts *globalOptions) *cobra.Command {
	var addr string
	var transcripts []string

	cmd := &cobra.Command{
		Use:   "fake-backend",
		Short: "Serve an in-memory command backend for local testing",
		Long: `Serves the command backend contract from memory. Requests must carry the
--token value as X-Auth-Token; an empty token disables the check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			logger, closeLogs, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLogs()

			server := backendtest.New(opts.token, logger)
			if len(transcripts) > 0 {
				server.ScriptTranscripts(transcripts...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() { errs <- server.Start(addr) }()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("fake backend shutdown failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringSliceVar(&transcripts, "transcript", nil, "transcripts returned by successive transcribe calls")
	return cmd
}

func parseKinds(args []string) ([]domain.ItemKind, error) {
	if len(args) == 0 {
		return domain.ItemKinds, nil
	}
	kinds := make([]domain.ItemKind, 0, len(args))
	for _, arg := range args {
		kind, ok := domain.ParseItemKind(arg)
		if !ok {
			return nil, fmt.Errorf("unknown item type %q (want todo or note)", arg)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printState(out io.Writer, state domain.CommandState) {
	switch {
	case state.Success != nil:
		fmt.Fprintln(out, state.Success.Message)
		if nav := state.Success.Navigation; nav != nil {
			fmt.Fprintf(out, "Directions to %s: %s\n", nav.Address, nav.Deeplink)
		}
	case state.Failure != nil:
		fmt.Fprintln(out, state.Failure.Message)
		if state.Failure.Details != "" {
			fmt.Fprintf(out, "  %s\n", state.Failure.Details)
		}
	default:
		fmt.Fprintln(out, state.Phase)
	}
}

func printKeywords(out io.Writer, keywords map[string]string) {
	if len(keywords) == 0 {
		fmt.Fprintln(out, "No keywords saved")
		return
	}
	keys := make([]string, 0, len(keywords))
	for key := range keywords {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s -> %s\n", key, keywords[key])
	}
}

func formatCreated(created time.Time) string {
	if created.IsZero() {
		return "-"
	}
	return created.Local().Format("2006-01-02 15:04")
}
