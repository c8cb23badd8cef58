package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/service/orchestrator"
)

func TestRecorder_WriteFile(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &orchestrator.Report{
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Outcomes: []fleet.Outcome{
			{Name: "pkgA", Status: fleet.StatusUpdated, Version: "v1.2.0"},
			{Name: "pkgB", Status: fleet.StatusFailed, Err: fleet.Errorf(fleet.KindNoReleases, "resolve", "404")},
		},
		Notified: true,
	}

	r := New()
	r.Record(report, 1)

	path := filepath.Join(t.TempDir(), "fleet.prom")
	require.NoError(t, r.WriteFile(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(contents)
	require.Contains(t, text, `fleet_updater_packages{status="updated"} 1`)
	require.Contains(t, text, `fleet_updater_packages{status="up_to_date"} 0`)
	require.Contains(t, text, `fleet_updater_package_info{package="pkgA",reason="",status="updated",version="v1.2.0"} 1`)
	require.Contains(t, text, `fleet_updater_package_info{package="pkgB",reason="no_releases",status="failed",version=""} 1`)
	require.Contains(t, text, "fleet_updater_last_run_duration_seconds 90")
	require.Contains(t, text, "fleet_updater_escalations 1")
	require.Contains(t, text, "fleet_updater_notification_sent 1")
}
