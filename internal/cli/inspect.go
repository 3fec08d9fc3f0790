package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/stats"
	"github.com/artpar/dcg/internal/engine"
)

// =============================================================================
// list
// =============================================================================

func (a *app) listCommand() *cobra.Command {
	var showPath, showRaw bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List deployments and their status",
		Aliases: []string{"ls"},
		GroupID: GroupInspect,
		Args:    withArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			if showRaw {
				raw, err := b.RawRegistry(ctx)
				if err != nil {
					return err
				}
				_, err = a.opts.Stdout.Write(raw)
				return err
			}

			spin := newProgress(a.opts.Stderr, a.opts.Terminal.StderrTTY, "Checking deployments...")
			spin.Start()
			views, err := b.List(ctx)
			spin.Stop()
			if err != nil {
				return err
			}

			if len(views) == 0 {
				a.out.failure("No deployments found.")
				return nil
			}
			a.renderList(views, showPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showPath, "show-path", "s", false, "show the deployment directory")
	cmd.Flags().BoolVarP(&showRaw, "show-raw", "r", false, "print the raw registry file")
	return cmd
}

func (a *app) renderList(views []domain.DeploymentView, showPath bool) {
	t := &table{title: "Deployments Status"}
	t.columns = append(t.columns, column{header: "Name"})
	if showPath {
		t.columns = append(t.columns, column{header: "File Path"})
	}
	t.columns = append(t.columns, column{header: "Status", align: alignRight})

	for _, v := range views {
		c := a.out.green
		if v.Status == domain.StatusDown {
			c = a.out.red
		}
		row := []cell{{text: v.Name, color: c}}
		if showPath {
			row = append(row, cell{text: v.FilePath, color: c})
		}
		row = append(row, cell{text: string(v.Status), color: c})
		t.addRow(row...)
	}
	t.renderBox(a.opts.Stdout, a.out.bold)

	for _, v := range views {
		if v.Error != "" {
			a.out.warn("%s: %s", v.Name, v.Error)
		}
	}
}

// =============================================================================
// status
// =============================================================================

func (a *app) statusCommand() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:     "status NAME",
		Short:   "Show the status of a deployment",
		Long:    `Show whether a deployment is up. With --long, list every container with its ports, image and uptime.`,
		GroupID: GroupInspect,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			spin := newProgress(a.opts.Stderr, a.opts.Terminal.StderrTTY, "Checking "+name+"...")
			spin.Start()
			report, err := b.Status(ctx, name, long)
			spin.Stop()
			if err != nil {
				return a.explain(ctx, b, name, err)
			}

			if long {
				a.renderContainers(report)
			} else {
				root := &node{label: "Deployment Status", color: a.out.bold}
				root.add(fmt.Sprintf("%s: %s", report.Name, report.Status), a.statusColor(report.Status))
				root.render(a.opts.Stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show per-container details")
	return cmd
}

func (a *app) renderContainers(report *domain.StatusReport) {
	root := &node{label: report.Name, color: a.out.bold}
	if len(report.Containers) == 0 {
		root.add("No containers found", a.out.red)
		root.render(a.opts.Stdout)
		return
	}

	for _, c := range report.Containers {
		stateColor := a.out.green
		if c.State != "running" {
			stateColor = a.out.red
		}
		n := root.add(c.Name, stateColor)

		ports := "N/A"
		if len(c.Ports) > 0 {
			ports = strings.Join(c.Ports, ", ")
		}
		n.add("Ports: "+ports, nil)
		n.add("Image: "+c.Image, nil)
		if c.Uptime != "" {
			n.add("Uptime: "+c.Uptime, nil)
		} else {
			n.add("State: "+c.State, nil)
		}
	}
	root.render(a.opts.Stdout)
}

func (a *app) statusColor(s domain.Status) *color.Color {
	switch s {
	case domain.StatusUp:
		return a.out.green
	case domain.StatusDown:
		return a.out.red
	default:
		return a.out.yellow
	}
}

// =============================================================================
// statistics
// =============================================================================

func (a *app) statisticsCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:     "statistics",
		Short:   "Show registry statistics",
		Aliases: []string{"stats"},
		GroupID: GroupInspect,
		Args:    withArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			st, err := b.Statistics(ctx)
			if err != nil {
				return err
			}

			if key != "" {
				value, err := st.Lookup(key)
				if err != nil {
					var unknown *stats.UnknownKeyError
					if errors.As(err, &unknown) {
						return &ExitError{Code: ExitFailure, Message: unknown.Error(), Err: err}
					}
					return err
				}
				a.out.println("%d", value)
				return nil
			}

			t := &table{columns: []column{{header: "Key"}, {header: "Value", align: alignRight}}}
			for _, e := range st {
				t.addRow(cell{text: e.Key}, cell{text: strconv.Itoa(e.Value)})
			}
			t.renderGrid(a.opts.Stdout)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "print only the value of this statistic")
	return cmd
}

// =============================================================================
// logs
// =============================================================================

func (a *app) logsCommand() *cobra.Command {
	var opts engine.LogOptions

	cmd := &cobra.Command{
		Use:     "logs NAME",
		Short:   "Show container logs of a deployment",
		GroupID: GroupInspect,
		Args:    withArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Tail != "all" {
				if n, err := strconv.Atoi(opts.Tail); err != nil || n < 0 {
					return usageError(fmt.Errorf("--tail must be a non-negative number or \"all\", got %q", opts.Tail))
				}
			}

			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			err = b.Logs(ctx, name, opts, a.opts.Stdout, a.opts.Stderr)
			switch {
			case errors.Is(err, engine.ErrNoContainers):
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("No containers found for %s.", name), Err: err}
			case errors.Is(err, engine.ErrFollowNeedsOneContainer):
				return usageError(err)
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				return a.explain(ctx, b, name, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Service, "service", "", "only show logs of this compose service")
	cmd.Flags().StringVarP(&opts.Tail, "tail", "n", "100", "number of lines to show from the end, or \"all\"")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "follow log output")
	cmd.Flags().BoolVarP(&opts.Timestamps, "timestamps", "t", false, "show timestamps")
	return cmd
}

// =============================================================================
// history
// =============================================================================

func (a *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [NAME]",
		Short: "Show recorded actions",
		Long: `Show the actions dcg performed and the status changes seen by "dcg serve",
newest first. History of removed deployments is kept.`,
		GroupID: GroupInspect,
		Args:    withArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return usageError(fmt.Errorf("--limit must be at least 1, got %d", limit))
			}

			ctx := cmd.Context()
			b, err := a.backendFor(ctx)
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			events, err := b.History(ctx, name, limit)
			if errors.Is(err, engine.ErrHistoryDisabled) {
				return &ExitError{Code: ExitFailure, Message: "History is disabled.", Err: err}
			}
			if err != nil {
				return err
			}

			if len(events) == 0 {
				a.out.println("No history recorded.")
				return nil
			}
			a.renderHistory(events)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events")
	return cmd
}

func (a *app) renderHistory(events []domain.Event) {
	t := &table{columns: []column{
		{header: "Time"},
		{header: "Deployment"},
		{header: "Action"},
		{header: "Outcome"},
		{header: "Message"},
	}}
	for _, e := range events {
		c := a.out.green
		if e.Outcome == domain.OutcomeFailure {
			c = a.out.red
		}
		t.addRow(
			cell{text: e.CreatedAt.Local().Format(time.DateTime)},
			cell{text: e.Deployment},
			cell{text: string(e.Action)},
			cell{text: string(e.Outcome), color: c},
			cell{text: e.Message},
		)
	}
	t.renderBox(a.opts.Stdout, a.out.bold)
}
