// jrdev is a terminal coding assistant: an interactive REPL by default,
// or a single instruction via the run subcommand.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jrdev/internal/app"
	"jrdev/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workspace string
		verbose   bool
	)

	root := &cobra.Command{
		Use:           "jrdev",
		Short:         "AI pair programmer for your terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := buildKernel(workspace, verbose, false)
			if err != nil {
				return err
			}
			defer k.Close()
			return repl(cmd.Context(), k)
		},
	}
	root.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (defaults to the working directory)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	var acceptAll bool
	run := &cobra.Command{
		Use:   "run <instruction...>",
		Short: "execute one instruction and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := buildKernel(workspace, verbose, acceptAll)
			if err != nil {
				return err
			}
			defer k.Close()
			return k.HandleInput(cmd.Context(), strings.Join(args, " "))
		},
	}
	run.Flags().BoolVar(&acceptAll, "accept-all", false, "apply file changes without per-diff confirmation")
	root.AddCommand(run)

	return root
}

func buildKernel(workspace string, verbose, acceptAll bool) (*app.Kernel, error) {
	k, err := app.New(app.Options{Root: workspace, AcceptAll: acceptAll})
	if err != nil {
		return nil, err
	}
	if verbose {
		logging.SetDebug(true)
	}
	return k, nil
}

func repl(parent context.Context, k *app.Kernel) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	k.Printf("jrdev %s. Type a request, or /help for commands.", version)
	for {
		line, err := k.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := k.HandleInput(ctx, line); err != nil {
			if errors.Is(err, app.ErrExit) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			k.Printf("error: %v", err)
		}
	}
}
