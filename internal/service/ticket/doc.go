// Package ticket opens incident tickets in Freshdesk.
package ticket
