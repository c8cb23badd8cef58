package updater

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/service/orchestrator"
)

// PrintSummary renders the outcome of every package as a table.
func PrintSummary(w io.Writer, report *orchestrator.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Package", "Status", "Version", "Problem")

	for i := range report.Outcomes {
		outcome := &report.Outcomes[i]

		if err := table.Append([]string{outcome.Name, string(outcome.Status), outcome.Version, problemOf(outcome)}); err != nil {
			return fmt.Errorf("append summary row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	return nil
}

func problemOf(outcome *fleet.Outcome) string {
	switch {
	case outcome.Err != nil && outcome.Reason() == "":
		return "unexpected_error"
	case outcome.Err != nil:
		return string(outcome.Reason())
	case outcome.DependencyErr != nil:
		return string(fleet.KindDependency)
	default:
		return ""
	}
}
