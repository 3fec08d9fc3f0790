package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/dcg"
	"github.com/artpar/dcg/internal/changelog"
)

func (a *app) changelogCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "changelog [version]",
		Short: "View the embedded changelog",
		Long: `View the changelog embedded in this binary.

Examples:
  dcg changelog              # every version
  dcg changelog unreleased   # unreleased changes
  dcg changelog v0.1.0       # one version (v prefix optional)
  dcg changelog --plain      # no colors or icons`,
		GroupID:     GroupOther,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Args:        withArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := changelog.Parse(dcg.Changelog)
			if err != nil {
				return fmt.Errorf("loading embedded changelog: %w", err)
			}

			opts := changelog.FormatOptions{Plain: plain || a.noColor || !a.opts.Terminal.SupportsColor()}

			if len(args) == 0 {
				return changelog.Format(log.Versions, a.opts.Stdout, opts)
			}

			v, err := log.GetVersion(args[0])
			if err != nil {
				var notFound *changelog.VersionNotFoundError
				if errors.As(err, &notFound) {
					fmt.Fprintf(a.opts.Stderr, "Version %q not found.\n\nAvailable versions:\n", args[0])
					for _, ver := range log.ListVersions() {
						fmt.Fprintf(a.opts.Stderr, "  %s\n", ver)
					}
					return NewExitError(ExitInvalidArguments)
				}
				return err
			}
			return changelog.FormatVersion(v, a.opts.Stdout, opts)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "plain text output (no colors or icons)")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the dcg version",
		GroupID:     GroupOther,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Args:        withArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			if a.opts.Built != "" {
				a.out.println("dcg %s (built %s)", a.opts.Version, a.opts.Built)
				return
			}
			a.out.println("dcg %s", a.opts.Version)
		},
	}
}
