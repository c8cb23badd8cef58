package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/metrics"
	"github.com/oshokin/fleet-updater/internal/service/bootstrap"
	"github.com/oshokin/fleet-updater/internal/service/common"
	"github.com/oshokin/fleet-updater/internal/service/dependency"
	"github.com/oshokin/fleet-updater/internal/service/escalation"
	"github.com/oshokin/fleet-updater/internal/service/executor"
	"github.com/oshokin/fleet-updater/internal/service/notify"
	"github.com/oshokin/fleet-updater/internal/service/orchestrator"
	"github.com/oshokin/fleet-updater/internal/service/resolver"
	"github.com/oshokin/fleet-updater/internal/service/ticket"
	"github.com/oshokin/fleet-updater/internal/version"
)

var (
	errUnknownPackage = errors.New("package is not in the registry")
	errBadLogLevel    = errors.New("unknown log level")
)

// Options are inputs accepted by the updater entry points.
type Options struct {
	// EnvFile is the optional dotenv or YAML settings file.
	EnvFile string
	// RegistryFile overrides the registry location from the settings.
	RegistryFile string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// MetricsFile overrides the Prometheus textfile location from the settings.
	MetricsFile string
	// Output receives the run summary. Defaults to standard output.
	Output io.Writer
}

// runner holds everything a single invocation needs.
// It is unexported; call Run or Bootstrap.
type runner struct {
	cfg          *config.Config
	registry     fleet.Registry
	gateway      *escalation.Gateway
	executor     *executor.Executor
	bootstrapper *bootstrap.Bootstrapper
	synchronizer *dependency.Synchronizer
	orchestrator *orchestrator.Orchestrator
	output       io.Writer
}

// Run executes one update cycle over the whole registry and is the entry point of the CLI.
// Only configuration problems and an interrupted cycle are returned as errors;
// package failures are escalated and shown in the summary.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, version.ProgramName)
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	u, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	marker, err := acquireMarker(ctx, u.cfg.RootDirectory)
	if err != nil {
		return err
	}

	defer marker.release(ctx)

	logger.InfoKV(ctx, "Update cycle started", "packages", len(u.registry), "root", u.cfg.RootDirectory)

	report, runErr := u.orchestrator.Run(ctx)

	if err = PrintSummary(u.output, report); err != nil {
		logger.Warnf(ctx, "Failed to print the summary: %v", err)
	}

	u.writeMetrics(ctx, report)

	if runErr != nil {
		logger.ErrorKV(ctx, "Update cycle interrupted", "error", runErr)
		return runErr
	}

	logger.InfoKV(ctx, "Update cycle completed",
		"updated", report.Count(fleet.StatusUpdated),
		"bootstrapped", report.Count(fleet.StatusBootstrapped),
		"failed", report.Count(fleet.StatusFailed),
		"escalations", u.gateway.Count())

	return nil
}

// Bootstrap provisions one registered package: it prepares the directory if
// needed, writes the missing runtime artifacts and installs the dependencies.
// The version marker is not touched, so the next cycle still installs the latest release.
func Bootstrap(ctx context.Context, opts *Options, name string) error {
	ctx = logger.WithName(ctx, version.ProgramName)
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString(), "package", name)

	u, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	entry, found := u.registry.Find(name)
	if !found {
		return fmt.Errorf("%q: %w", name, errUnknownPackage)
	}

	dir := u.cfg.PackageDir(entry.Name)

	if _, err = os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err = u.executor.Prepare(ctx, entry, dir); err != nil {
			return err
		}
	}

	if err = u.bootstrapper.Ensure(ctx, dir); err != nil {
		return err
	}

	result, err := u.synchronizer.Sync(ctx, dir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Package bootstrapped", "directory", dir, "dependencies", result)

	return nil
}

// newRunner loads and validates the settings and the registry and builds the services.
// A configuration failure is escalated once before it is returned.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.EnvFile)
	if cfg != nil {
		applyOverrides(cfg, opts)
	}

	if err == nil {
		err = applyLogLevel(cfg.LogLevel)
	}

	gateway := newGateway(ctx, cfg)

	if err != nil {
		gateway.Report(ctx, "Configuration error", err.Error())
		return nil, err
	}

	registry, err := config.LoadRegistry(cfg.RegistryFile)
	if err != nil {
		gateway.Report(ctx, "Registry error", err.Error())
		return nil, err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	commands := common.NewExecRunner(cfg.CommandTimeout)
	githubClient := common.NewHTTPClient(ctx, cfg.Token, cfg.APIURL, cfg.HTTPTimeout)

	u := &runner{
		cfg:          cfg,
		registry:     registry,
		gateway:      gateway,
		executor:     executor.New(cfg, commands, githubClient),
		bootstrapper: bootstrap.New(cfg, commands),
		synchronizer: dependency.New(commands),
		output:       output,
	}

	u.orchestrator = orchestrator.New(cfg, registry, orchestrator.Components{
		Resolver:     resolver.New(cfg, githubClient),
		Executor:     u.executor,
		Bootstrapper: u.bootstrapper,
		Synchronizer: u.synchronizer,
		Notifier:     notify.New(cfg.Notification),
		Escalator:    gateway,
	})

	return u, nil
}

// newGateway opens tickets only when Freshdesk is configured; otherwise escalations are logged.
func newGateway(ctx context.Context, cfg *config.Config) *escalation.Gateway {
	actor, err := common.DetectActor()
	if err != nil {
		logger.Warnf(ctx, "Unable to identify this host: %v", err)
	}

	if cfg == nil {
		return escalation.New(nil, actor)
	}

	client := ticket.New(cfg.Ticketing, &http.Client{Timeout: cfg.HTTPTimeout})
	if !client.Enabled() {
		logger.Debug(ctx, "Ticketing is not configured, failures are only logged")
		return escalation.New(nil, actor)
	}

	return escalation.New(client, actor)
}

func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.RegistryFile != "" {
		cfg.RegistryFile = opts.RegistryFile
	}

	if opts.MetricsFile != "" {
		cfg.MetricsFile = opts.MetricsFile
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
}

func applyLogLevel(raw string) error {
	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		return fleet.Wrap(fleet.KindConfiguration, "parse log level", fmt.Errorf("%q: %w", raw, errBadLogLevel))
	}

	logger.SetLevel(level)

	return nil
}

func (u *runner) writeMetrics(ctx context.Context, report *orchestrator.Report) {
	if u.cfg.MetricsFile == "" {
		return
	}

	recorder := metrics.New()
	recorder.Record(report, u.gateway.Count())

	if err := recorder.WriteFile(u.cfg.MetricsFile); err != nil {
		logger.Warnf(ctx, "Failed to write metrics: %v", err)
		return
	}

	logger.DebugKV(ctx, "Metrics written", "path", u.cfg.MetricsFile)
}

// InitRegistry writes the built-in registry to the configured or default registry location.
// It does not need the settings file to be valid.
func InitRegistry(opts *Options) error {
	path := opts.RegistryFile
	if path == "" {
		path = config.DefaultRegistryPath()
	}

	if err := config.SaveRegistry(path, config.DefaultRegistry()); err != nil {
		return err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	_, err := fmt.Fprintf(output, "Registry written to %s\n", path)

	return err
}
