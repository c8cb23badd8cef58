package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/repository/state"
)

func newResolver(t *testing.T, handler http.HandlerFunc) *Resolver {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Owner:       "bluecity",
		APIURL:      server.URL,
		HTTPTimeout: time.Second,
	}

	return New(cfg, server.Client())
}

// TestLatest_ParsesRelease checks the endpoint path, headers and parsed fields.
func TestLatest_ParsesRelease(t *testing.T) {
	t.Parallel()

	r := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/repos/bluecity/azure-vm-monitor/releases/latest", req.URL.Path)
		require.Contains(t, req.Header.Get("User-Agent"), "fleet-updater/")
		_, _ = w.Write([]byte(`{"tag_name":"v1.2.0","zipball_url":"https://api.github.com/zip/v1.2.0"}`))
	})

	release, err := r.Latest(context.Background(), "azure-vm-monitor")
	require.NoError(t, err)
	require.Equal(t, fleet.Release{Tag: "v1.2.0", ArchiveURL: "https://api.github.com/zip/v1.2.0"}, release)
}

// TestLatest_ErrorKinds distinguishes "nothing published" from transport failures.
func TestLatest_ErrorKinds(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
		kind   fleet.Kind
	}{
		"no releases":  {status: http.StatusNotFound, body: `{"message":"Not Found"}`, kind: fleet.KindNoReleases},
		"server error": {status: http.StatusBadGateway, body: ``, kind: fleet.KindTransport},
		"rate limited": {status: http.StatusForbidden, body: `{"message":"rate limit"}`, kind: fleet.KindTransport},
		"garbage":      {status: http.StatusOK, body: `<html>`, kind: fleet.KindTransport},
		"no tag":       {status: http.StatusOK, body: `{"name":"x"}`, kind: fleet.KindTransport},
	}

	for name, tc := range cases {
		r := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})

		_, err := r.Latest(context.Background(), "repo")
		require.Error(t, err, name)
		require.Equal(t, tc.kind, fleet.KindOf(err), name)
	}
}

// TestLatest_Unreachable reports a transport error when the server is gone.
func TestLatest_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	r := New(&config.Config{Owner: "o", APIURL: server.URL}, &http.Client{Timeout: time.Second})

	_, err := r.Latest(context.Background(), "repo")
	require.True(t, fleet.IsKind(err, fleet.KindTransport))
}

// TestCheck_ComparesMarker covers missing, different and equal markers.
func TestCheck_ComparesMarker(t *testing.T) {
	t.Parallel()

	r := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v1.2.0"}`))
	})

	dir := t.TempDir()
	ctx := context.Background()

	release, due, err := r.Check(ctx, "repo", dir)
	require.NoError(t, err)
	require.True(t, due)
	require.Equal(t, "v1.2.0", release.Tag)

	require.NoError(t, state.NewVersionMarker(dir).Save(ctx, "v1.1.0"))

	_, due, err = r.Check(ctx, "repo", dir)
	require.NoError(t, err)
	require.True(t, due)

	require.NoError(t, state.NewVersionMarker(dir).Save(ctx, "v1.2.0"))

	_, due, err = r.Check(ctx, "repo", dir)
	require.NoError(t, err)
	require.False(t, due)
}
