package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/artpar/dcg/internal/shell/api"
	"github.com/artpar/dcg/internal/shell/workers"
)

func (a *app) serveCommand() *cobra.Command {
	var host string
	var port int
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local JSON API",
		Long: `Serve the deployment API over HTTP until interrupted. The OpenAPI document
is available at /openapi.json.

Unless --no-watch is given, a background watcher checks every deployment
each watch.interval and records status changes in the history.`,
		GroupID: GroupOther,
		Args:    withArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				if port < 1 || port > 65535 {
					return usageError(fmt.Errorf("--port must be between 1 and 65535, got %d", port))
				}
				a.cfg.Server.Port = port
			}

			ctx := cmd.Context()
			// Compose output would interleave with request logs.
			b, err := a.opts.NewBackend(ctx, a.cfg, io.Discard, io.Discard, a.logger)
			if err != nil {
				return err
			}
			a.backend = b

			var watcher api.Watcher
			if !noWatch {
				watchCfg := workers.DefaultStatusWatcherConfig()
				if a.cfg.Watch.Interval > 0 {
					watchCfg.Interval = a.cfg.Watch.Interval
				}
				watcher = workers.NewStatusWatcher(b, b, watchCfg, a.logger)
			}

			handler := api.NewHandler(b, a.logger, a.opts.Version)
			server := api.NewServer(api.ServerConfig{
				Address:         a.cfg.Server.Address(),
				ReadTimeout:     a.cfg.Server.ReadTimeout,
				WriteTimeout:    a.cfg.Server.WriteTimeout,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			}, handler.Routes(), watcher, a.logger)

			fmt.Fprintf(a.opts.Stderr, "Serving dcg API on http://%s\n", a.cfg.Server.Address())
			return server.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen address (default from server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from server.port)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not run the status watcher")
	return cmd
}
