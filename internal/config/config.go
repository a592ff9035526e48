// Package config loads accessetl settings from a .env file, an optional YAML
// file and the process environment (in increasing order of precedence).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"accessetl/internal/storage"
)

// ErrConfigNotFound is returned when an explicitly requested file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

const (
	DefaultConfigFile  = "accessetl.yaml"
	DefaultEnvFile     = ".env"
	DefaultEntrySuffix = ".accdb"
	DefaultODBCDriver  = "Microsoft Access Driver (*.mdb, *.accdb)"
	DefaultJobName     = "accessetl"
)

type Config struct {
	Archive   ArchiveConfig   `yaml:"archive"`
	Source    SourceConfig    `yaml:"source"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ArchiveConfig struct {
	URL         string `yaml:"url"`
	EntrySuffix string `yaml:"entry_suffix"`
	// HTTPTimeout is a Go duration string; empty means no client timeout.
	HTTPTimeout string `yaml:"http_timeout"`
	UserAgent   string `yaml:"user_agent"`

	S3Endpoint            string `yaml:"s3_endpoint"`
	AzureConnectionString string `yaml:"azure_connection_string"`
}

type SourceConfig struct {
	// Charset names a legacy code page (IANA name, e.g. windows-1252) used to
	// decode text returned as raw bytes. Empty means bytes are UTF-8.
	Charset    string `yaml:"charset"`
	ODBCDriver string `yaml:"odbc_driver"`
}

type WarehouseConfig struct {
	Kind      string          `yaml:"kind"`
	DSN       string          `yaml:"dsn"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
}

type SnowflakeConfig struct {
	Account        string `yaml:"account"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Auth           string `yaml:"auth"`
	Warehouse      string `yaml:"warehouse"`
	Database       string `yaml:"database"`
	Schema         string `yaml:"schema"`
	Role           string `yaml:"role"`
	Token          string `yaml:"token"`
	PrivateKeyPath string `yaml:"private_key_path"`
	OnError        string `yaml:"on_error"`
}

type MetricsConfig struct {
	Backend    string   `yaml:"backend"`
	Tags       []string `yaml:"tags"`
	JobName    string   `yaml:"job_name"`
	FlushEvery string   `yaml:"flush_every"`
}

// LoadOptions controls where Load looks for settings.
//
// Empty EnvFile/ConfigFile use the defaults and tolerate a missing file;
// explicitly named files must exist. Lookup defaults to os.LookupEnv.
type LoadOptions struct {
	EnvFile    string
	ConfigFile string
	Lookup     func(string) (string, bool)
}

// Load builds a Config. Values from the real environment win over the .env
// file, which wins over the YAML file. Load does not validate; call Validate.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := readYAML(opts.ConfigFile, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	cfg.applyDefaults()
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	m, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return map[string]string{}, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return m, nil
}

func readYAML(path string, cfg *Config) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&c.Archive.URL, "ARCHIVE_URL")
	set(&c.Archive.EntrySuffix, "ARCHIVE_ENTRY_SUFFIX")
	set(&c.Archive.HTTPTimeout, "HTTP_TIMEOUT")
	set(&c.Archive.UserAgent, "HTTP_USER_AGENT")
	set(&c.Archive.S3Endpoint, "S3_ENDPOINT")
	set(&c.Archive.AzureConnectionString, "AZURE_STORAGE_CONNECTION_STRING")

	set(&c.Source.Charset, "SOURCE_CHARSET")
	set(&c.Source.ODBCDriver, "ODBC_DRIVER")

	set(&c.Warehouse.Kind, "WAREHOUSE_KIND")
	set(&c.Warehouse.DSN, "WAREHOUSE_DSN")

	sf := &c.Warehouse.Snowflake
	set(&sf.User, "SNOWFLAKE_USER")
	set(&sf.Password, "SNOWFLAKE_PASSWORD")
	set(&sf.Account, "SNOWFLAKE_ACCOUNT")
	set(&sf.Auth, "SNOWFLAKE_AUTH")
	set(&sf.Warehouse, "SNOWFLAKE_WAREHOUSE")
	set(&sf.Database, "SNOWFLAKE_DATABASE")
	set(&sf.Schema, "SNOWFLAKE_SCHEMA")
	set(&sf.Role, "SNOWFLAKE_ROLE")
	set(&sf.Token, "SNOWFLAKE_TOKEN")
	set(&sf.PrivateKeyPath, "SNOWFLAKE_PRIVATE_KEY_PATH")
	set(&sf.OnError, "SNOWFLAKE_ON_ERROR")

	set(&c.Metrics.Backend, "METRICS_BACKEND")
	set(&c.Metrics.JobName, "JOB_NAME")
	set(&c.Metrics.FlushEvery, "METRICS_FLUSH_EVERY")
	if v, ok := lookup("METRICS_TAGS"); ok {
		c.Metrics.Tags = splitCSV(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Archive.EntrySuffix == "" {
		c.Archive.EntrySuffix = DefaultEntrySuffix
	}
	if c.Source.ODBCDriver == "" {
		c.Source.ODBCDriver = DefaultODBCDriver
	}
	if c.Warehouse.Kind == "" {
		c.Warehouse.Kind = "snowflake"
	}
	if c.Metrics.JobName == "" {
		c.Metrics.JobName = DefaultJobName
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HTTPTimeout parses Archive.HTTPTimeout. Empty yields 0 (no timeout).
func (c *Config) HTTPTimeout() (time.Duration, error) {
	return parseDuration(c.Archive.HTTPTimeout)
}

// MetricsFlushEvery parses Metrics.FlushEvery. Empty yields 0 (backend default).
func (c *Config) MetricsFlushEvery() (time.Duration, error) {
	return parseDuration(c.Metrics.FlushEvery)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// StorageConfig converts the warehouse settings for storage.New.
func (c *Config) StorageConfig() storage.Config {
	sc := storage.Config{Kind: c.Warehouse.Kind, DSN: c.Warehouse.DSN}
	if c.Warehouse.Kind == "snowflake" {
		sf := c.Warehouse.Snowflake
		sc.Options = map[string]string{
			"account":          sf.Account,
			"user":             sf.User,
			"password":         sf.Password,
			"authenticator":    sf.Auth,
			"warehouse":        sf.Warehouse,
			"database":         sf.Database,
			"schema":           sf.Schema,
			"role":             sf.Role,
			"token":            sf.Token,
			"private_key_path": sf.PrivateKeyPath,
			"on_error":         sf.OnError,
		}
	}
	return sc
}

// Summary renders non-secret settings for verbose logging.
func (c *Config) Summary() string {
	return fmt.Sprintf("archive=%s suffix=%s warehouse=%s account=%s database=%s schema=%s metrics=%s",
		redactURL(c.Archive.URL), c.Archive.EntrySuffix, c.Warehouse.Kind,
		c.Warehouse.Snowflake.Account, c.Warehouse.Snowflake.Database, c.Warehouse.Snowflake.Schema,
		orNone(c.Metrics.Backend))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("redacted")
	return u.String()
}

// ---- validation ----

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path uses the YAML key path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownWarehouses = map[string]bool{"snowflake": true, "postgres": true, "mssql": true, "sqlite": true}

var archiveSchemes = map[string]bool{"http": true, "https": true, "file": true, "s3": true, "gs": true, "az": true}

// Validate checks the loaded configuration and returns every finding.
func (c *Config) Validate() []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch u, err := url.Parse(c.Archive.URL); {
	case c.Archive.URL == "":
		add(SeverityError, "archive.url", "ARCHIVE_URL is required")
	case err != nil:
		add(SeverityError, "archive.url", "invalid url: %v", err)
	case !archiveSchemes[strings.ToLower(u.Scheme)]:
		add(SeverityError, "archive.url", "unsupported scheme %q", u.Scheme)
	}

	if !strings.HasPrefix(c.Archive.EntrySuffix, ".") {
		add(SeverityWarning, "archive.entry_suffix", "suffix %q does not start with a dot", c.Archive.EntrySuffix)
	}
	if _, err := c.HTTPTimeout(); err != nil {
		add(SeverityError, "archive.http_timeout", "%v", err)
	}

	if c.Source.Charset != "" {
		if enc, err := ianaindex.IANA.Encoding(c.Source.Charset); err != nil || enc == nil {
			add(SeverityError, "source.charset", "unknown charset %q", c.Source.Charset)
		}
	}

	kind := c.Warehouse.Kind
	if !knownWarehouses[kind] {
		add(SeverityError, "warehouse.kind", "unsupported warehouse %q", kind)
	}
	if kind == "snowflake" && c.Warehouse.DSN == "" {
		issues = append(issues, c.Warehouse.Snowflake.validate()...)
	}
	if kind != "snowflake" && knownWarehouses[kind] && c.Warehouse.DSN == "" {
		add(SeverityError, "warehouse.dsn", "WAREHOUSE_DSN is required for %s", kind)
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		add(SeverityError, "metrics.backend", "unknown metrics backend %q (want datadog or none)", c.Metrics.Backend)
	}
	if _, err := c.MetricsFlushEvery(); err != nil {
		add(SeverityError, "metrics.flush_every", "%v", err)
	}

	return issues
}

func (s SnowflakeConfig) validate() []Issue {
	var issues []Issue
	req := func(v, path, env string) {
		if strings.TrimSpace(v) == "" {
			issues = append(issues, Issue{SeverityError, path, env + " is required"})
		}
	}

	req(s.Account, "warehouse.snowflake.account", "SNOWFLAKE_ACCOUNT")

	auth := strings.ToLower(strings.TrimSpace(s.Auth))
	switch {
	case auth == "" || auth == "snowflake" || auth == "username_password_mfa":
		req(s.User, "warehouse.snowflake.user", "SNOWFLAKE_USER")
		req(s.Password, "warehouse.snowflake.password", "SNOWFLAKE_PASSWORD")
	case auth == "externalbrowser":
		req(s.User, "warehouse.snowflake.user", "SNOWFLAKE_USER")
	case auth == "oauth":
		req(s.Token, "warehouse.snowflake.token", "SNOWFLAKE_TOKEN")
	case auth == "snowflake_jwt":
		req(s.User, "warehouse.snowflake.user", "SNOWFLAKE_USER")
		req(s.PrivateKeyPath, "warehouse.snowflake.private_key_path", "SNOWFLAKE_PRIVATE_KEY_PATH")
	case strings.HasPrefix(auth, "https://"):
		req(s.User, "warehouse.snowflake.user", "SNOWFLAKE_USER")
		req(s.Password, "warehouse.snowflake.password", "SNOWFLAKE_PASSWORD")
	default:
		issues = append(issues, Issue{SeverityError, "warehouse.snowflake.auth", fmt.Sprintf("unsupported SNOWFLAKE_AUTH %q", s.Auth)})
	}

	if s.Database == "" || s.Schema == "" {
		issues = append(issues, Issue{SeverityWarning, "warehouse.snowflake", "database/schema not set; the user's defaults will be used"})
	}
	return issues
}
