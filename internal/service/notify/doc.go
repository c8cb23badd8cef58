// Package notify e-mails the operator the list of packages changed by a run.
package notify
