package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
)

// clearEnv blanks every bound variable so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range envKeys {
		t.Setenv(toEnv(key), "")
		require.NoError(t, os.Unsetenv(toEnv(key)))
	}
}

func toEnv(key string) string {
	return strings.ToUpper(key)
}

// TestLoad_FromDotenvFile reads settings from a dotenv file and applies defaults.
func TestLoad_FromDotenvFile(t *testing.T) {
	clearEnv(t)

	root := t.TempDir()
	envFile := filepath.Join(t.TempDir(), ".env")
	contents := "BASE_DIRECTORY=" + root + "\n" +
		"GITHUB_USERNAME=bluecity\n" +
		"GITHUB_TOKEN=secret\n" +
		"REQUESTER_EMAIL=ops@example.com\n" +
		"FRESHDESK_GROUP_ID=201000039106\n" +
		"COMMAND_TIMEOUT=2m\n"
	require.NoError(t, os.WriteFile(envFile, []byte(contents), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, root, cfg.RootDirectory)
	require.Equal(t, "bluecity", cfg.Owner)
	require.Equal(t, "secret", cfg.Token)
	require.Equal(t, DefaultAPIURL, cfg.APIURL)
	require.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	require.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	require.Equal(t, DefaultSMTPPort, cfg.Notification.SMTPPort)
	require.Equal(t, DefaultHTTPTimeout, cfg.Notification.Timeout)
	require.Equal(t, "ops@example.com", cfg.Notification.RequesterEmail)
	require.Equal(t, "ops@example.com", cfg.Ticketing.RequesterEmail)
	require.Equal(t, int64(201000039106), cfg.Ticketing.GroupID)
	require.Equal(t, int64(DefaultTicketResponderID), cfg.Ticketing.ResponderID)
	require.Equal(t, filepath.Join(root, "git-commit"), cfg.PackageDir("git-commit"))
}

// TestLoad_EnvironmentWinsOverFile checks the precedence of process variables.
func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)

	root := t.TempDir()
	settings := filepath.Join(t.TempDir(), "settings.yaml")
	contents := "base_directory: " + root + "\n" +
		"github_username: from-file\n" +
		"secrets:\n  MQL5_TERMINAL: C:/terminal\n"
	require.NoError(t, os.WriteFile(settings, []byte(contents), 0o600))

	t.Setenv("GITHUB_USERNAME", "from-env")

	cfg, err := Load(settings)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Owner)
	require.Equal(t, "C:/terminal", cfg.Secrets["mql5_terminal"])
}

// TestLoad_MissingRootIsConfigurationError verifies the fatal configuration kind.
func TestLoad_MissingRootIsConfigurationError(t *testing.T) {
	clearEnv(t)

	t.Setenv("GITHUB_USERNAME", "bluecity")

	_, err := Load("")
	require.Error(t, err)
	require.True(t, fleet.IsKind(err, fleet.KindConfiguration))

	t.Setenv("BASE_DIRECTORY", filepath.Join(t.TempDir(), "missing"))

	_, err = Load("")
	require.True(t, fleet.IsKind(err, fleet.KindConfiguration))
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	good := func() *Config {
		return &Config{
			RootDirectory:  root,
			Owner:          "bluecity",
			APIURL:         DefaultAPIURL,
			WebURL:         DefaultWebURL,
			HTTPTimeout:    time.Second,
			CommandTimeout: time.Second,
		}
	}

	cfg := good()
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultPythonExecutable, cfg.PythonExecutable)

	cfg = good()
	cfg.RootDirectory = file
	require.ErrorIs(t, Validate(cfg), errRootDirectoryInvalid)

	cfg = good()
	cfg.Owner = ""
	require.ErrorIs(t, Validate(cfg), errOwnerRequired)

	cfg = good()
	cfg.APIURL = "not a url"
	require.ErrorIs(t, Validate(cfg), errBadURL)

	cfg = good()
	cfg.HTTPTimeout = 0
	require.ErrorIs(t, Validate(cfg), errBadTimeout)
}
