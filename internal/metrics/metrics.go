package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/service/orchestrator"
)

const namespace = "fleet_updater"

// Recorder holds the gauges of one run in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	packages    *prometheus.GaugeVec
	installed   *prometheus.GaugeVec
	lastRun     prometheus.Gauge
	duration    prometheus.Gauge
	escalations prometheus.Gauge
	notified    prometheus.Gauge
}

//nolint:gochecknoglobals // Every status gets a series, zero included.
var allStatuses = []fleet.Status{
	fleet.StatusBootstrapped,
	fleet.StatusUpToDate,
	fleet.StatusUpdated,
	fleet.StatusFailed,
}

// New creates a Recorder with all gauges registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		packages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages",
			Help:      "Packages per final status of the last run",
		}, []string{"status"}),
		installed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "package_info",
			Help:      "Installed release and status of each package, always 1",
		}, []string{"package", "version", "status", "reason"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		escalations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escalations",
			Help:      "Failures escalated during the last run",
		}),
		notified: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_sent",
			Help:      "1 when the last run sent an update summary",
		}),
	}

	r.registry.MustRegister(r.packages, r.installed, r.lastRun, r.duration, r.escalations, r.notified)

	return r
}

// Record sets every gauge from report.
func (r *Recorder) Record(report *orchestrator.Report, escalations int) {
	for _, status := range allStatuses {
		r.packages.WithLabelValues(string(status)).Set(float64(report.Count(status)))
	}

	r.installed.Reset()

	for i := range report.Outcomes {
		outcome := &report.Outcomes[i]
		r.installed.WithLabelValues(outcome.Name, outcome.Version, string(outcome.Status), string(outcome.Reason())).Set(1)
	}

	r.lastRun.Set(float64(report.Finished.Unix()))
	r.duration.Set(report.Finished.Sub(report.Started).Seconds())
	r.escalations.Set(float64(escalations))

	if report.Notified {
		r.notified.Set(1)
	} else {
		r.notified.Set(0)
	}
}

// WriteFile atomically writes the gauges to path for the textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
