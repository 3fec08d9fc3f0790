package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/dcg/internal/engine"
)

func (a *app) startAllCommand() *cobra.Command {
	return a.bulkCommand("start-all", "start", "Start all deployments", "started", func(ctx context.Context, b Backend) (engine.BulkResult, error) {
		return b.StartAll(ctx)
	})
}

func (a *app) stopAllCommand() *cobra.Command {
	return a.bulkCommand("stop-all", "stop", "Stop all deployments", "stopped", func(ctx context.Context, b Backend) (engine.BulkResult, error) {
		return b.StopAll(ctx)
	})
}

func (a *app) bulkCommand(use, verb, short, done string, run func(context.Context, Backend) (engine.BulkResult, error)) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Deployments are processed in parallel (engine.max_parallel); a failing
deployment does not stop the others. Without --force a confirmation is
asked, and the command is canceled when stdin is not a terminal.`,
		GroupID: GroupBulk,
		Args:    withArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				ok, err := a.confirm(fmt.Sprintf("Are you sure you want to %s all deployments?", verb))
				if err != nil {
					return err
				}
				if !ok {
					a.out.println("Action canceled.")
					return nil
				}
			}

			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			result, err := run(ctx, b)
			if err != nil {
				return err
			}
			if len(result.Results) == 0 {
				a.out.failure("No deployments found.")
				return nil
			}

			for _, r := range result.Results {
				if r.Err != nil {
					a.out.failure("Deployment %s: %s", r.Name, a.explain(ctx, b, r.Name, r.Err).Error())
					continue
				}
				a.out.success("Deployment %s %s.", r.Name, done)
			}

			if err := result.Err(); err != nil {
				var bulkErr *engine.BulkError
				if errors.As(err, &bulkErr) {
					return &ExitError{Code: ExitFailure, Message: bulkErr.Error(), Err: err}
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on stdin. Without a terminal the answer is no.
func (a *app) confirm(question string) (bool, error) {
	if !a.opts.Terminal.StdinTTY {
		a.out.warn("Not a terminal; use --force to skip confirmation.")
		return false, nil
	}

	fmt.Fprintf(a.opts.Stdout, "%s [y/N]: ", question)
	input, err := bufio.NewReader(a.opts.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes", nil
}
