package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fleet-updater/internal/service/updater"
	"github.com/oshokin/fleet-updater/internal/version"
)

var (
	// options collects the persistent flags shared by every command.
	options updater.Options

	// rootCmd runs one update cycle over the package registry.
	rootCmd = &cobra.Command{
		Use:   version.ProgramName,
		Short: "Keep a fleet of locally installed packages in sync with their GitHub releases",
		Long: "Walks the package registry once: provisions new packages, installs newer releases, " +
			"reinstalls changed dependencies and e-mails a summary of what changed.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts := options
			opts.Output = cmd.OutOrStdout()

			return updater.Run(ctx, &opts)
		},
	}

	// bootstrapCmd provisions a single package without updating it.
	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap <package>",
		Short: "Provision the runtime environment of one registered package",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return updater.Bootstrap(ctx, &options, args[0])
		},
	}

	// registryCmd writes the built-in registry so it can be edited.
	registryCmd = &cobra.Command{
		Use:   "init-registry",
		Short: "Write the built-in package registry to the registry location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options
			opts.Output = cmd.OutOrStdout()

			return updater.InitRegistry(&opts)
		},
	}
)

// Execute runs the fleet-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.EnvFile, "env-file", "e", "", "path to a dotenv or YAML settings file")
	flags.StringVarP(&options.RegistryFile, "registry", "r", "", "path to the package registry YAML file")
	flags.StringVarP(&options.LogLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	flags.StringVar(&options.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")

	rootCmd.AddCommand(bootstrapCmd, registryCmd)
}
