// Package escalation reports failures to the log and, when configured, to the ticketing system.
package escalation
