package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
// PIPEGRAPH_SERVER__PORT=9000 sets server.port.
const EnvPrefix = "PIPEGRAPH_"

type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Telemetry   TelemetryConfig    `koanf:"telemetry"`
	IDs         IDConfig           `koanf:"ids"`
	DataSources []DataSourceConfig `koanf:"data_sources"`
	Functions   []FunctionConfig   `koanf:"functions"`
	Resolvers   []ResolverConfig   `koanf:"resolvers"`
}

type ServerConfig struct {
	Port       int    `koanf:"port"`
	Timeout    string `koanf:"timeout"`    // Duration string like "30s"
	Playground bool   `koanf:"playground"` // Serve the GraphQL playground at /
}

type TelemetryConfig struct {
	Tracing     bool   `koanf:"tracing"` // Export spans to stdout
	ServiceName string `koanf:"service_name"`
}

type IDConfig struct {
	Format string `koanf:"format"` // uuid, uuidv7
}

// DataSourceConfig declares one storage table.
type DataSourceConfig struct {
	Name         string `koanf:"name"`
	Type         string `koanf:"type"`  // memory, sqlite, mysql, badger
	Table        string `koanf:"table"` // Defaults to the data source name
	Key          string `koanf:"key"`   // Partition key attribute, defaults to "id"
	DSN          string `koanf:"dsn"`   // sqlite, mysql
	Path         string `koanf:"path"`  // badger directory
	InMemory     bool   `koanf:"in_memory"`
	Retries      int    `koanf:"retries"`
	RetryBackoff string `koanf:"retry_backoff"` // Duration string like "50ms"
}

// FunctionConfig declares one pipeline function built from a template.
type FunctionConfig struct {
	Name         string `koanf:"name"`
	DataSource   string `koanf:"data_source"`
	Template     string `koanf:"template"`      // scan, put_item
	KeyAttribute string `koanf:"key_attribute"` // Defaults to the data source key
	// InputArgument names the argument holding the attributes to write.
	// Defaults to "input"; an explicit empty string uses all arguments.
	InputArgument *string `koanf:"input_argument"`
	OnError       string  `koanf:"on_error"` // fail, null
}

// ResolverConfig binds an ordered list of functions to a field.
type ResolverConfig struct {
	Type      string   `koanf:"type"`
	Field     string   `koanf:"field"`
	Functions []string `koanf:"functions"`
}

// Data source types.
const (
	DataSourceMemory = "memory"
	DataSourceSQLite = "sqlite"
	DataSourceMySQL  = "mysql"
	DataSourceBadger = "badger"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (if it exists), applies PIPEGRAPH_ environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:       8080,
			Timeout:    "30s",
			Playground: true,
		},
		Telemetry: TelemetryConfig{ServiceName: "pipegraph"},
		IDs:       IDConfig{Format: "uuid"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":            8080,
		"server.timeout":         "30s",
		"server.playground":      true,
		"telemetry.service_name": "pipegraph",
		"ids.format":             "uuid",
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

// ApplyDefaults fills in the posts pipelines when nothing is declared and
// normalises per-entry defaults. Load applies it; configs built in code must
// call it before use.
func (c *Config) ApplyDefaults() {
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "pipegraph"
	}
	if c.IDs.Format == "" {
		c.IDs.Format = "uuid"
	}

	if len(c.DataSources) == 0 && len(c.Functions) == 0 && len(c.Resolvers) == 0 {
		c.DataSources, c.Functions, c.Resolvers = DefaultPipelines()
	}

	keys := make(map[string]string, len(c.DataSources))
	for i := range c.DataSources {
		ds := &c.DataSources[i]
		if ds.Table == "" {
			ds.Table = ds.Name
		}
		if ds.Key == "" {
			ds.Key = "id"
		}
		ds.DSN = substituteEnvVars(ds.DSN)
		keys[ds.Name] = ds.Key
	}

	for i := range c.Functions {
		fn := &c.Functions[i]
		if fn.KeyAttribute == "" {
			fn.KeyAttribute = keys[fn.DataSource]
		}
		if fn.KeyAttribute == "" {
			fn.KeyAttribute = "id"
		}
	}
}

// DefaultPipelines returns the posts table with its list and create pipelines.
func DefaultPipelines() ([]DataSourceConfig, []FunctionConfig, []ResolverConfig) {
	input := "input"
	return []DataSourceConfig{
			{Name: "posts", Type: DataSourceMemory, Table: "posts", Key: "id"},
		}, []FunctionConfig{
			{Name: "GetPosts", DataSource: "posts", Template: "scan", KeyAttribute: "id"},
			{Name: "AddPosts", DataSource: "posts", Template: "put_item", KeyAttribute: "id", InputArgument: &input},
		}, []ResolverConfig{
			{Type: "Query", Field: "getPost", Functions: []string{"GetPosts"}},
			{Type: "Mutation", Field: "createPost", Functions: []string{"AddPosts"}},
		}
}

// Validate checks values that do not depend on other sections. Cross
// references between functions, data sources and resolvers are checked when
// the pipelines are built.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := c.Server.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for _, ds := range c.DataSources {
		if ds.Name == "" {
			errs = append(errs, errors.New("data source name is required"))
			continue
		}
		if seen[ds.Name] {
			errs = append(errs, fmt.Errorf("duplicate data source %q", ds.Name))
		}
		seen[ds.Name] = true

		switch ds.Type {
		case DataSourceMemory:
		case DataSourceSQLite, DataSourceMySQL:
			if ds.DSN == "" {
				errs = append(errs, fmt.Errorf("data source %s: dsn is required for %s", ds.Name, ds.Type))
			}
		case DataSourceBadger:
			if ds.Path == "" && !ds.InMemory {
				errs = append(errs, fmt.Errorf("data source %s: path or in_memory is required for badger", ds.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("data source %s: invalid type %q (must be memory, sqlite, mysql or badger)", ds.Name, ds.Type))
		}
		if ds.Retries < 0 {
			errs = append(errs, fmt.Errorf("data source %s: retries must not be negative", ds.Name))
		}
		if _, err := ds.RetryBackoffDuration(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// TimeoutDuration parses the server timeout. Zero disables it.
func (s ServerConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// RetryBackoffDuration parses the retry backoff, defaulting to 50ms.
func (d DataSourceConfig) RetryBackoffDuration() (time.Duration, error) {
	if d.RetryBackoff == "" {
		return 50 * time.Millisecond, nil
	}
	v, err := time.ParseDuration(d.RetryBackoff)
	if err != nil {
		return 0, fmt.Errorf("data source %s: invalid retry_backoff %q: %w", d.Name, d.RetryBackoff, err)
	}
	return v, nil
}

// Input returns the configured input argument name, defaulting to "input".
func (f FunctionConfig) Input() string {
	if f.InputArgument == nil {
		return "input"
	}
	return *f.InputArgument
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
