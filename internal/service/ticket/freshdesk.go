package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/version"
)

const (
	// maxTries bounds the attempts of a single ticket.
	maxTries = 3

	priorityLow = 1
	statusOpen  = 2

	maxResponseSize = 1 << 20
)

var (
	errNotConfigured = errors.New("freshdesk domain, api key or requester e-mail is not set")
	errBadHTTPStatus = errors.New("unexpected http status")
	errNoTicketID    = errors.New("response carries no ticket id")
)

// Client creates Freshdesk tickets through the REST API.
type Client struct {
	cfg        config.Ticketing
	client     *http.Client
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithBackOff replaces the exponential backoff between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

type requester struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type ticketRequest struct {
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Status      int       `json:"status"`
	GroupID     int64     `json:"group_id,omitempty"`
	ResponderID int64     `json:"responder_id,omitempty"`
	Requester   requester `json:"requester"`
}

// New creates a Client. The http client should not carry GitHub credentials.
func New(cfg config.Ticketing, client *http.Client, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		client: client,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Enabled reports whether enough settings are present to open tickets.
func (c *Client) Enabled() bool {
	return (c.cfg.Domain != "" || c.cfg.BaseURL != "") && c.cfg.APIKey != "" && c.cfg.RequesterEmail != ""
}

// CreateTicket opens a ticket and returns its id. Network failures and
// server errors are retried; client errors are not.
func (c *Client) CreateTicket(ctx context.Context, message, subject string) (string, error) {
	if !c.Enabled() {
		return "", errNotConfigured
	}

	body, err := json.Marshal(ticketRequest{
		Subject:     subject,
		Description: c.describe(message),
		Priority:    priorityLow,
		Status:      statusOpen,
		GroupID:     c.cfg.GroupID,
		ResponderID: c.cfg.ResponderID,
		Requester: requester{
			Name:  c.cfg.RequesterName,
			Email: c.cfg.RequesterEmail,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}

	operation := func() (string, error) {
		return c.post(ctx, body)
	}

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(maxTries))
	if err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}

	return id, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req.SetBasicAuth(c.cfg.APIKey, "X")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%s: %w", resp.Status, errBadHTTPStatus)
	case resp.StatusCode != http.StatusCreated:
		return "", backoff.Permanent(fmt.Errorf("%s: %s: %w", resp.Status, strings.TrimSpace(string(payload)), errBadHTTPStatus))
	}

	id := gjson.GetBytes(payload, "id")
	if !id.Exists() {
		return "", backoff.Permanent(errNoTicketID)
	}

	return id.String(), nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.freshdesk.com", c.cfg.Domain)
	}

	return base + "/api/v2/tickets"
}

func (c *Client) describe(message string) string {
	lines := strings.Split(html.EscapeString(message), "\n")

	return fmt.Sprintf("Dear %s<br>\nA support ticket has been automatically generated because of the following error:<br><br>\n%s<br><br>\n",
		html.EscapeString(c.cfg.RequesterName), strings.Join(lines, "<br>\n"))
}
