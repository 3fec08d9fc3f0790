package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/engine"
)

// =============================================================================
// Registry Commands
// =============================================================================

func (a *app) addCommand() *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "add NAME DIR",
		Short: "Register a deployment",
		Long: `Register the docker-compose deployment in DIR under NAME.

The directory is stored as an absolute path. It is not required to hold a
compose file yet, but start, stop and update need one.`,
		Example: `  dcg add plex /opt/apps/plex
  dcg add plex ~/apps/plex --start`,
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			if _, err := b.Add(ctx, name, args[1], false); err != nil {
				return a.explain(ctx, b, name, err)
			}
			a.out.success("Deployment %s added.", name)

			if start {
				return a.start(ctx, b, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&start, "start", "s", false, "start the deployment after adding it")
	return cmd
}

func (a *app) removeCommand() *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Unregister a deployment",
		Long: `Remove a deployment from the registry. Its directory, compose file and
containers are left alone unless --stop is given, in which case the
deployment is brought down first.`,
		Aliases: []string{"rm"},
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			if stop {
				err := b.Stop(ctx, name)
				switch {
				case errors.Is(err, domain.ErrComposeFileNotFound):
					a.out.warn("%s", a.explain(ctx, b, name, err).Error())
				case err != nil:
					return a.explain(ctx, b, name, err)
				default:
					a.out.success("Deployment %s stopped.", name)
				}
			}

			if _, err := b.Remove(ctx, name, false); err != nil {
				return a.explain(ctx, b, name, err)
			}
			a.out.success("Deployment %s removed from dcg.", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&stop, "stop", "s", false, "stop the deployment before removing it")
	return cmd
}

// =============================================================================
// Lifecycle Commands
// =============================================================================

func (a *app) updateCommand() *cobra.Command {
	var start, restart bool

	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Pull new images for a deployment",
		Long: `Pull the images of a deployment. With --restart the deployment is brought
down and up again afterwards; with --start it is started.`,
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if start && restart {
				return &ExitError{
					Code:    ExitInvalidArguments,
					Message: "You cannot use both --start and --restart options together.",
					Err:     domain.ErrConflictingFlags,
				}
			}

			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			a.out.println("Updating %s...", name)
			outcome, err := b.Update(ctx, name, engine.UpdateOptions{Start: start, Restart: restart})
			if err != nil {
				return a.explain(ctx, b, name, err)
			}
			a.out.success("%s", outcome.Message(name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&start, "start", "s", false, "start the deployment after pulling")
	cmd.Flags().BoolVarP(&restart, "restart", "r", false, "restart the deployment after pulling")
	return cmd
}

func (a *app) upCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "up NAME",
		Short:   "Start a deployment (docker compose up -d)",
		Aliases: []string{"start"},
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}
			return a.start(ctx, b, args[0])
		},
	}
}

func (a *app) downCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "down NAME",
		Short:   "Stop a deployment (docker compose down)",
		Aliases: []string{"stop"},
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			if err := b.Stop(ctx, name); err != nil {
				return a.explain(ctx, b, name, err)
			}
			a.out.success("Deployment %s stopped.", name)
			return nil
		},
	}
}

func (a *app) restartCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "restart NAME",
		Short:   "Stop and start a deployment",
		GroupID: GroupDeployments,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			a.out.println("Attempting to restart %s...", name)
			if err := b.Restart(ctx, name); err != nil {
				return a.explain(ctx, b, name, err)
			}
			a.out.success("Deployment %s restarted.", name)
			return nil
		},
	}
}

func (a *app) start(ctx context.Context, b Backend, name string) error {
	a.out.println("Attempting to start %s...", name)
	if err := b.Start(ctx, name); err != nil {
		return a.explain(ctx, b, name, err)
	}
	a.out.success("Deployment %s started.", name)
	return nil
}

// explain replaces registry and compose file errors with the message shown
// to users. Other errors are returned unchanged.
func (a *app) explain(ctx context.Context, b Backend, name string, err error) error {
	var message string
	switch {
	case errors.Is(err, domain.ErrDeploymentNotFound):
		message = fmt.Sprintf("Deployment %s not found.", name)
	case errors.Is(err, domain.ErrDeploymentExists):
		message = fmt.Sprintf("Deployment %s already exists.", name)
	case errors.Is(err, domain.ErrComposeFileNotFound):
		dir := name
		if d, gerr := b.Get(ctx, name); gerr == nil {
			dir = d.FilePath
		}
		message = fmt.Sprintf("No docker-compose file found in %s.", dir)
	default:
		return err
	}
	return &ExitError{Code: ExitFailure, Message: message, Err: err}
}
