package escalation

import (
	"context"

	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/service/common"
)

// Ticketer opens an incident ticket and returns its id.
type Ticketer interface {
	CreateTicket(ctx context.Context, message, subject string) (string, error)
}

// Severity selects the log level of an escalation.
type Severity int

const (
	// SeverityError is the default for failures that need a human.
	SeverityError Severity = iota
	// SeverityWarning is used for conditions that are expected to resolve on their own.
	SeverityWarning
)

// Gateway is the single place failures are surfaced. Escalating never fails:
// a ticketing problem is logged and swallowed so the run continues.
type Gateway struct {
	ticketer Ticketer
	actor    *common.Actor
	count    int
}

// New creates a Gateway. A nil ticketer only logs. Tickets name actor as the reporting host.
func New(ticketer Ticketer, actor *common.Actor) *Gateway {
	return &Gateway{
		ticketer: ticketer,
		actor:    actor,
	}
}

// Report escalates a failure at error level.
func (g *Gateway) Report(ctx context.Context, subject, detail string) {
	g.escalate(ctx, SeverityError, subject, detail)
}

// Warn escalates a failure at warning level.
func (g *Gateway) Warn(ctx context.Context, subject, detail string) {
	g.escalate(ctx, SeverityWarning, subject, detail)
}

// Count returns how many escalations were made.
func (g *Gateway) Count() int {
	return g.count
}

func (g *Gateway) escalate(ctx context.Context, severity Severity, subject, detail string) {
	g.count++

	if severity == SeverityWarning {
		logger.WarnKV(ctx, subject, "detail", detail)
	} else {
		logger.ErrorKV(ctx, subject, "detail", detail)
	}

	if g.ticketer == nil {
		return
	}

	message := detail + "\n\nReported by " + g.actor.String()

	id, err := g.ticketer.CreateTicket(ctx, message, subject)
	if err != nil {
		logger.Warnf(ctx, "Failed to open a ticket for %q: %v", subject, err)
		return
	}

	logger.InfoKV(ctx, "Ticket created", "ticket_id", id)
}
