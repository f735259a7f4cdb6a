package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if !cfg.Server.Playground {
			t.Error("Load() playground should default to true")
		}
		if len(cfg.Resolvers) != 2 {
			t.Errorf("Load() resolvers = %d, want the 2 default posts resolvers", len(cfg.Resolvers))
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("PIPEGRAPH_SERVER__PORT", "9000")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("file", func(t *testing.T) {
		t.Setenv("TEST_SQLITE_PATH", "/tmp/posts.db")
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
server:
  port: 9090
  timeout: 5s
ids:
  format: uuidv7
data_sources:
  - name: posts
    type: sqlite
    dsn: "file:${TEST_SQLITE_PATH}"
    key: pk
functions:
  - name: ListPosts
    data_source: posts
    template: scan
  - name: CreatePost
    data_source: posts
    template: put_item
    input_argument: ""
resolvers:
  - type: Query
    field: posts
    functions: [ListPosts]
`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9090 {
			t.Errorf("port = %d, want 9090", cfg.Server.Port)
		}
		if d, _ := cfg.Server.TimeoutDuration(); d != 5*time.Second {
			t.Errorf("timeout = %v, want 5s", d)
		}
		if cfg.IDs.Format != "uuidv7" {
			t.Errorf("ids.format = %q, want uuidv7", cfg.IDs.Format)
		}

		wantDS := []DataSourceConfig{{Name: "posts", Type: "sqlite", Table: "posts", Key: "pk", DSN: "file:/tmp/posts.db"}}
		if diff := cmp.Diff(wantDS, cfg.DataSources); diff != "" {
			t.Errorf("data sources mismatch (-want +got):\n%s", diff)
		}

		if got := cfg.Functions[0].KeyAttribute; got != "pk" {
			t.Errorf("key_attribute = %q, want inherited pk", got)
		}
		if got := cfg.Functions[0].Input(); got != "input" {
			t.Errorf("scan input = %q, want default input", got)
		}
		if got := cfg.Functions[1].Input(); got != "" {
			t.Errorf("explicit empty input_argument = %q, want empty", got)
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("data_sources:\n  - name: x\n    type: dynamo\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Load() expected error for unknown data source type")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad timeout", func(c *Config) { c.Server.Timeout = "soon" }, true},
		{"sqlite without dsn", func(c *Config) {
			c.DataSources = append(c.DataSources, DataSourceConfig{Name: "db", Type: DataSourceSQLite})
		}, true},
		{"badger in memory", func(c *Config) {
			c.DataSources = append(c.DataSources, DataSourceConfig{Name: "kv", Type: DataSourceBadger, InMemory: true})
		}, false},
		{"badger without path", func(c *Config) {
			c.DataSources = append(c.DataSources, DataSourceConfig{Name: "kv", Type: DataSourceBadger})
		}, true},
		{"duplicate data source", func(c *Config) {
			c.DataSources = append(c.DataSources, c.DataSources[0])
		}, true},
		{"negative retries", func(c *Config) { c.DataSources[0].Retries = -1 }, true},
		{"bad backoff", func(c *Config) { c.DataSources[0].RetryBackoff = "later" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		DataSources: []DataSourceConfig{
			{Name: "posts", Type: DataSourceMemory},
			{Name: "users", Type: DataSourceMemory, Table: "people", Key: "email"},
		},
		Functions: []FunctionConfig{
			{Name: "AddPosts", DataSource: "posts", Template: "put_item"},
			{Name: "AddUsers", DataSource: "users", Template: "put_item"},
			{Name: "Explicit", DataSource: "users", Template: "put_item", KeyAttribute: "pk"},
		},
	}
	cfg.ApplyDefaults()

	wantSources := []DataSourceConfig{
		{Name: "posts", Type: DataSourceMemory, Table: "posts", Key: "id"},
		{Name: "users", Type: DataSourceMemory, Table: "people", Key: "email"},
	}
	if diff := cmp.Diff(wantSources, cfg.DataSources); diff != "" {
		t.Errorf("data sources mismatch (-want +got):\n%s", diff)
	}

	var keys []string
	for _, fn := range cfg.Functions {
		keys = append(keys, fn.KeyAttribute)
	}
	if diff := cmp.Diff([]string{"id", "email", "pk"}, keys); diff != "" {
		t.Errorf("key attributes mismatch (-want +got):\n%s", diff)
	}
	if cfg.Telemetry.ServiceName != "pipegraph" || cfg.IDs.Format != "uuid" {
		t.Errorf("service name %q, id format %q", cfg.Telemetry.ServiceName, cfg.IDs.Format)
	}

	// Applying twice changes nothing.
	before := *cfg
	before.DataSources = slices.Clone(cfg.DataSources)
	before.Functions = slices.Clone(cfg.Functions)
	cfg.ApplyDefaults()
	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("second ApplyDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "embedded",
			input: "user:${TEST_VAR}@tcp(db:3306)/posts",
			want:  "user:test-value@tcp(db:3306)/posts",
		},
		{
			name:  "unset variable",
			input: "${PIPEGRAPH_TEST_UNSET}",
			want:  "",
		},
		{
			name:  "no variables",
			input: "file::memory:",
			want:  "file::memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
