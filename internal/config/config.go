package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
)

// Config is built once at startup and handed to every component by pointer.
type Config struct {
	// RootDirectory contains one subdirectory per tracked package.
	RootDirectory string
	// Owner is the GitHub user or organization owning every tracked repository.
	Owner string
	// Token is the optional GitHub access token.
	Token string
	// APIURL is the GitHub REST API base URL.
	APIURL string
	// WebURL is the GitHub web base URL used for clones and archive fallbacks.
	WebURL string
	// HTTPTimeout bounds every outgoing HTTP request.
	HTTPTimeout time.Duration
	// CommandTimeout bounds every subprocess.
	CommandTimeout time.Duration
	// PythonExecutable creates the per-package sandbox.
	PythonExecutable string
	// RegistryFile is the YAML package registry. Empty means the default location.
	RegistryFile string
	// MetricsFile receives a Prometheus textfile after each run when set.
	MetricsFile string
	// LogLevel is the minimum log level.
	LogLevel string
	// Secrets are extra constants written into new secrets files.
	Secrets map[string]string
	// Notification configures the e-mail summary.
	Notification Notification
	// Ticketing configures incident tickets.
	Ticketing Ticketing
}

// Notification holds the SMTP settings of the operator summary.
type Notification struct {
	RequesterName    string
	RequesterEmail   string
	SMTPServer       string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SenderName       string
	SenderEmail      string
	SenderDepartment string
	// Timeout bounds the whole SMTP session.
	Timeout time.Duration
}

// Ticketing holds the Freshdesk settings.
type Ticketing struct {
	Domain         string
	APIKey         string
	BaseURL        string
	GroupID        int64
	ResponderID    int64
	RequesterName  string
	RequesterEmail string
}

const (
	// DefaultAPIURL is the public GitHub API.
	DefaultAPIURL = "https://api.github.com"
	// DefaultWebURL is the public GitHub site.
	DefaultWebURL = "https://github.com"
	// DefaultHTTPTimeout is the default bound of network calls.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultCommandTimeout is the default bound of subprocesses.
	DefaultCommandTimeout = 10 * time.Minute
	// DefaultPythonExecutable creates sandboxes when nothing else is configured.
	DefaultPythonExecutable = "python"
	// DefaultSMTPPort is the SMTP submission port.
	DefaultSMTPPort = 587
	// DefaultFilePermissions is used for secrets and state files.
	DefaultFilePermissions = 0o600
	// DefaultTicketGroupID is the Freshdesk group receiving incident tickets.
	DefaultTicketGroupID = 201000039106
	// DefaultTicketResponderID is the Freshdesk agent assigned to incident tickets.
	DefaultTicketResponderID = 201002411183
)

// Setting keys. Each one is bound to the upper-case environment variable of the same name.
const (
	keyRootDirectory    = "base_directory"
	keyOwner            = "github_username"
	keyToken            = "github_token"
	keyAPIURL           = "github_api_url"
	keyWebURL           = "github_url"
	keyHTTPTimeout      = "http_timeout"
	keyCommandTimeout   = "command_timeout"
	keyPython           = "python_executable"
	keyRegistryFile     = "registry_file"
	keyMetricsFile      = "metrics_file"
	keyLogLevel         = "log_level"
	keySecrets          = "secrets"
	keyRequesterName    = "requester_name"
	keyRequesterEmail   = "requester_email"
	keySMTPServer       = "smtp_server"
	keySMTPPort         = "smtp_port"
	keySMTPUser         = "smtp_email"
	keySMTPPassword     = "smtp_password"
	keySenderName       = "sender_name"
	keySenderEmail      = "sender_email"
	keySenderDepartment = "sender_department"
	keyFreshdeskDomain  = "freshdesk_domain"
	keyFreshdeskAPIKey  = "freshdesk_api"
	keyFreshdeskURL     = "freshdesk_url"
	keyFreshdeskGroup   = "freshdesk_group_id"
	keyFreshdeskAgent   = "freshdesk_responder_id"
)

var (
	errRootDirectoryRequired = errors.New("root directory is not set (BASE_DIRECTORY)")
	errRootDirectoryInvalid  = errors.New("root directory is not a directory")
	errOwnerRequired         = errors.New("repository owner is not set (GITHUB_USERNAME)")
	errBadURL                = errors.New("invalid URL")
	errBadTimeout            = errors.New("timeout must be positive")
)

//nolint:gochecknoglobals // Fixed list of bound settings.
var envKeys = []string{
	keyRootDirectory, keyOwner, keyToken, keyAPIURL, keyWebURL,
	keyHTTPTimeout, keyCommandTimeout, keyPython, keyRegistryFile, keyMetricsFile, keyLogLevel,
	keyRequesterName, keyRequesterEmail, keySMTPServer, keySMTPPort, keySMTPUser, keySMTPPassword,
	keySenderName, keySenderEmail, keySenderDepartment,
	keyFreshdeskDomain, keyFreshdeskAPIKey, keyFreshdeskURL, keyFreshdeskGroup, keyFreshdeskAgent,
}

// Load reads the settings from the process environment and, when settingsFile
// is not empty, from a dotenv or YAML file. Environment variables win over the file.
// The result is validated; any problem is a configuration error. When only
// validation fails the loaded settings are returned with the error, so the
// failure can still be reported through the configured channels.
func Load(settingsFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault(keyAPIURL, DefaultAPIURL)
	v.SetDefault(keyWebURL, DefaultWebURL)
	v.SetDefault(keyHTTPTimeout, DefaultHTTPTimeout)
	v.SetDefault(keyCommandTimeout, DefaultCommandTimeout)
	v.SetDefault(keyPython, DefaultPythonExecutable)
	v.SetDefault(keySMTPPort, DefaultSMTPPort)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyFreshdeskGroup, DefaultTicketGroupID)
	v.SetDefault(keyFreshdeskAgent, DefaultTicketResponderID)

	for _, key := range envKeys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fleet.Wrap(fleet.KindConfiguration, "bind environment", err)
		}
	}

	if settingsFile != "" {
		v.SetConfigFile(filepath.Clean(settingsFile))
		v.SetConfigType(settingsType(settingsFile))

		if err := v.ReadInConfig(); err != nil {
			return nil, fleet.Wrap(fleet.KindConfiguration, "read settings", err)
		}
	}

	cfg := &Config{
		RootDirectory:    strings.TrimSpace(v.GetString(keyRootDirectory)),
		Owner:            strings.TrimSpace(v.GetString(keyOwner)),
		Token:            strings.TrimSpace(v.GetString(keyToken)),
		APIURL:           strings.TrimRight(v.GetString(keyAPIURL), "/"),
		WebURL:           strings.TrimRight(v.GetString(keyWebURL), "/"),
		HTTPTimeout:      v.GetDuration(keyHTTPTimeout),
		CommandTimeout:   v.GetDuration(keyCommandTimeout),
		PythonExecutable: v.GetString(keyPython),
		RegistryFile:     v.GetString(keyRegistryFile),
		MetricsFile:      v.GetString(keyMetricsFile),
		LogLevel:         v.GetString(keyLogLevel),
		Secrets:          v.GetStringMapString(keySecrets),
		Notification: Notification{
			RequesterName:    v.GetString(keyRequesterName),
			RequesterEmail:   v.GetString(keyRequesterEmail),
			SMTPServer:       v.GetString(keySMTPServer),
			SMTPPort:         v.GetInt(keySMTPPort),
			SMTPUser:         v.GetString(keySMTPUser),
			SMTPPassword:     v.GetString(keySMTPPassword),
			SenderName:       v.GetString(keySenderName),
			SenderEmail:      v.GetString(keySenderEmail),
			SenderDepartment: v.GetString(keySenderDepartment),
			Timeout:          v.GetDuration(keyHTTPTimeout),
		},
		Ticketing: Ticketing{
			Domain:         v.GetString(keyFreshdeskDomain),
			APIKey:         v.GetString(keyFreshdeskAPIKey),
			BaseURL:        v.GetString(keyFreshdeskURL),
			GroupID:        v.GetInt64(keyFreshdeskGroup),
			ResponderID:    v.GetInt64(keyFreshdeskAgent),
			RequesterName:  v.GetString(keyRequesterName),
			RequesterEmail: v.GetString(keyRequesterEmail),
		},
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the settings that a run cannot do without.
func Validate(cfg *Config) error {
	if cfg.RootDirectory == "" {
		return fleet.Wrap(fleet.KindConfiguration, "validate settings", errRootDirectoryRequired)
	}

	info, err := os.Stat(cfg.RootDirectory)
	if err != nil {
		return fleet.Wrap(fleet.KindConfiguration, "validate settings", fmt.Errorf("%s: %w", cfg.RootDirectory, err))
	}

	if !info.IsDir() {
		return fleet.Wrap(fleet.KindConfiguration, "validate settings",
			fmt.Errorf("%s: %w", cfg.RootDirectory, errRootDirectoryInvalid))
	}

	if cfg.Owner == "" {
		return fleet.Wrap(fleet.KindConfiguration, "validate settings", errOwnerRequired)
	}

	for _, raw := range []string{cfg.APIURL, cfg.WebURL} {
		if _, err = url.ParseRequestURI(raw); err != nil {
			return fleet.Wrap(fleet.KindConfiguration, "validate settings", fmt.Errorf("%q: %w", raw, errBadURL))
		}
	}

	if cfg.HTTPTimeout <= 0 || cfg.CommandTimeout <= 0 {
		return fleet.Wrap(fleet.KindConfiguration, "validate settings", errBadTimeout)
	}

	if cfg.PythonExecutable == "" {
		cfg.PythonExecutable = DefaultPythonExecutable
	}

	return nil
}

// PackageDir returns the working directory of a package.
func (c *Config) PackageDir(name string) string {
	return filepath.Join(c.RootDirectory, name)
}

// settingsType picks the viper parser from the file extension.
func settingsType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "env"
	}
}
