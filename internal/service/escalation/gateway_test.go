package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleet-updater/internal/service/common"
)

type fakeTicketer struct {
	subjects []string
	messages []string
	err      error
}

func (f *fakeTicketer) CreateTicket(_ context.Context, message, subject string) (string, error) {
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, message)

	return "17", f.err
}

func TestReport_OpensTicket(t *testing.T) {
	t.Parallel()

	ticketer := new(fakeTicketer)
	g := New(ticketer, &common.Actor{Hostname: "vm-01", Username: "svc"})

	g.Report(context.Background(), "Sync failed", "git pull: exit code 1")
	g.Warn(context.Background(), "No releases", "bluecity/monitor")

	require.Equal(t, []string{"Sync failed", "No releases"}, ticketer.subjects)
	require.Equal(t, []string{
		"git pull: exit code 1\n\nReported by svc@vm-01",
		"bluecity/monitor\n\nReported by svc@vm-01",
	}, ticketer.messages)
	require.Equal(t, 2, g.Count())
}

// TestReport_SwallowsTicketFailure keeps going when the ticketing system is down.
func TestReport_SwallowsTicketFailure(t *testing.T) {
	t.Parallel()

	ticketer := &fakeTicketer{err: errors.New("503")}
	g := New(ticketer, nil)

	require.NotPanics(t, func() {
		g.Report(context.Background(), "Sync failed", "detail")
	})
	require.Len(t, ticketer.subjects, 1)
	require.Equal(t, 1, g.Count())
}

func TestReport_WithoutTicketer(t *testing.T) {
	t.Parallel()

	g := New(nil, nil)
	g.Report(context.Background(), "subject", "detail")
	require.Equal(t, 1, g.Count())
}
