//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// NewHTTPClient returns a client bounded by timeout. When token is not empty,
// requests to the host of apiURL carry it as a bearer token. Other hosts,
// such as archive redirect targets, never see it.
func NewHTTPClient(ctx context.Context, token, apiURL string, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if token == "" {
		return client
	}

	authorized := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	client.Transport = &scopedTransport{
		host:       hostOf(apiURL),
		authorized: authorized.Transport,
		plain:      http.DefaultTransport,
	}

	return client
}

// scopedTransport sends requests for host through the authorized transport.
type scopedTransport struct {
	host       string
	authorized http.RoundTripper
	plain      http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *scopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.host != "" && strings.EqualFold(req.URL.Host, t.host) {
		return t.authorized.RoundTrip(req)
	}

	return t.plain.RoundTrip(req)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return parsed.Host
}
