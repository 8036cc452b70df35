package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// UploadSlugNetCDF is the upload limit applied to grid files.
const UploadSlugNetCDF = "netcdf_upload_size"

// DefaultUploadLimit applies when no limit is configured for a slug.
const DefaultUploadLimit = "900 MB"

// Config holds all runtime configuration for an ncload run.
type Config struct {
	DSN         string
	FilePath    string
	RequestPath string
	LayerName   string
	Alternate   string
	Principal   string
	LogFormat   string // "text" or "json"
	LogLevel    string
	DryRun      bool

	DataDir      string
	GeoServer    GeoServer
	Toolchain    Toolchain
	Timeouts     Timeouts
	UploadLimits map[string]string
	Events       Events
	Metrics      Metrics
	Watch        Watch
}

// GeoServer locates the map server REST API.
type GeoServer struct {
	URL               string  `yaml:"url"`
	User              string  `yaml:"user"`
	Password          string  `yaml:"password"`
	Workspace         string  `yaml:"workspace"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Toolchain names the NCO commands. Either may carry a prefix such as a
// container runtime invocation.
type Toolchain struct {
	Ncap2   string        `yaml:"ncap2"`
	Ncatted string        `yaml:"ncatted"`
	Timeout time.Duration `yaml:"timeout"`
	// OutDir receives repaired copies; empty writes them next to the source.
	OutDir string `yaml:"out_dir"`
}

// Timeouts bound pipeline work.
type Timeouts struct {
	Stage     time.Duration `yaml:"stage"`
	HTTP      time.Duration `yaml:"http"`
	Statement time.Duration `yaml:"statement"`
}

// Events configures NATS notifications. Empty URL disables them.
type Events struct {
	NATSURL string `yaml:"nats_url"`
	Prefix  string `yaml:"prefix"`
}

// Metrics configures the Prometheus endpoint. Empty Listen disables it.
type Metrics struct {
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// Watch configures the drop-directory watcher.
type Watch struct {
	Dir      string        `yaml:"dir"`
	Workers  int           `yaml:"workers"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns a Config with every default filled in.
func Default() Config {
	return Config{
		LogFormat: "text",
		LogLevel:  "info",
		GeoServer: GeoServer{
			URL:       "http://localhost:8080/geoserver",
			User:      "admin",
			Workspace: "geonode",
		},
		Toolchain: Toolchain{
			Ncap2:   "ncap2",
			Ncatted: "ncatted",
			Timeout: 2 * time.Minute,
		},
		Timeouts: Timeouts{
			Stage:     10 * time.Minute,
			HTTP:      30 * time.Second,
			Statement: time.Minute,
		},
		UploadLimits: map[string]string{UploadSlugNetCDF: DefaultUploadLimit},
		Events:       Events{Prefix: "ncload"},
		Metrics:      Metrics{Namespace: "ncload"},
		Watch:        Watch{Workers: 2, Debounce: 2 * time.Second},
	}
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	DataDir      string            `yaml:"data_dir"`
	DryRun       *bool             `yaml:"dry_run"`
	GeoServer    GeoServer         `yaml:"geoserver"`
	Toolchain    Toolchain         `yaml:"toolchain"`
	Timeouts     Timeouts          `yaml:"timeouts"`
	UploadLimits map[string]string `yaml:"upload_limits"`
	Events       Events            `yaml:"events"`
	Metrics      Metrics           `yaml:"metrics"`
	Watch        Watch             `yaml:"watch"`
}

// LoadFromFile reads a YAML config file and merges its non-zero values into
// Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return errors.Wrap(err, "parse config file")
	}

	setString(&c.DataDir, yc.DataDir)
	if yc.DryRun != nil {
		c.DryRun = *yc.DryRun
	}

	setString(&c.GeoServer.URL, yc.GeoServer.URL)
	setString(&c.GeoServer.User, yc.GeoServer.User)
	setString(&c.GeoServer.Password, yc.GeoServer.Password)
	setString(&c.GeoServer.Workspace, yc.GeoServer.Workspace)
	if yc.GeoServer.RequestsPerSecond != 0 {
		c.GeoServer.RequestsPerSecond = yc.GeoServer.RequestsPerSecond
	}

	setString(&c.Toolchain.Ncap2, yc.Toolchain.Ncap2)
	setString(&c.Toolchain.Ncatted, yc.Toolchain.Ncatted)
	setString(&c.Toolchain.OutDir, yc.Toolchain.OutDir)
	setDuration(&c.Toolchain.Timeout, yc.Toolchain.Timeout)

	setDuration(&c.Timeouts.Stage, yc.Timeouts.Stage)
	setDuration(&c.Timeouts.HTTP, yc.Timeouts.HTTP)
	setDuration(&c.Timeouts.Statement, yc.Timeouts.Statement)

	if len(yc.UploadLimits) > 0 && c.UploadLimits == nil {
		c.UploadLimits = make(map[string]string)
	}
	for slug, v := range yc.UploadLimits {
		c.UploadLimits[slug] = v
	}

	setString(&c.Events.NATSURL, yc.Events.NATSURL)
	setString(&c.Events.Prefix, yc.Events.Prefix)
	setString(&c.Metrics.Listen, yc.Metrics.Listen)
	setString(&c.Metrics.Namespace, yc.Metrics.Namespace)

	setString(&c.Watch.Dir, yc.Watch.Dir)
	if yc.Watch.Workers != 0 {
		c.Watch.Workers = yc.Watch.Workers
	}
	setDuration(&c.Watch.Debounce, yc.Watch.Debounce)

	return c.validateSettings()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// validateSettings checks values that came from the config file.
func (c *Config) validateSettings() error {
	for slug := range c.UploadLimits {
		if _, err := c.UploadLimit(slug); err != nil {
			return err
		}
	}
	if c.Watch.Workers < 0 {
		return errors.Newf("watch.workers must be positive, got %d", c.Watch.Workers)
	}
	if c.GeoServer.RequestsPerSecond < 0 {
		return errors.Newf("geoserver.requests_per_second must not be negative, got %g", c.GeoServer.RequestsPerSecond)
	}
	for name, d := range map[string]time.Duration{
		"toolchain.timeout":  c.Toolchain.Timeout,
		"timeouts.stage":     c.Timeouts.Stage,
		"timeouts.http":      c.Timeouts.HTTP,
		"timeouts.statement": c.Timeouts.Statement,
	} {
		if d < 0 {
			return errors.Newf("%s must not be negative, got %s", name, d)
		}
	}
	return nil
}

// UploadLimit returns the limit for slug in bytes. Unknown slugs fall back
// to DefaultUploadLimit.
func (c *Config) UploadLimit(slug string) (int64, error) {
	v, ok := c.UploadLimits[slug]
	if !ok || v == "" {
		v = DefaultUploadLimit
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, errors.WithHint(
			errors.Wrapf(err, "upload_limits.%s", slug),
			`use a size such as "900 MB" or "2GiB"`)
	}
	return int64(n), nil
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.FilePath == "" && c.RequestPath == "" {
		return errors.New("--file or --request is required")
	}
	if c.FilePath != "" && c.RequestPath != "" {
		return errors.New("--file and --request are mutually exclusive")
	}
	path := c.FilePath
	if path == "" {
		path = c.RequestPath
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "file not accessible")
	}
	return c.validateSettings()
}

// ValidateWithDSN checks both file and DSN fields. Dry runs need no
// database.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.RequireDSN()
}

// RequireDSN fails unless a DSN is set or the run is a dry run.
func (c *Config) RequireDSN() error {
	if c.DSN == "" && !c.DryRun {
		return errors.New("--db-url or NCLOAD_DB_URL is required")
	}
	return nil
}
