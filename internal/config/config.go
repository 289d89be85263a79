// Package config builds the immutable runtime configuration.
//
// Layers, lowest precedence first: built-in defaults, a YAML file, a .env
// file, process environment, then caller overrides (CLI flags). The result
// is validated against an embedded CUE schema and never mutated afterwards.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/survos/lingua/internal/keys"
)

//go:embed schema.cue
var schemaCUE string

var (
	// ErrNoTargets is returned when no target locale can be resolved.
	ErrNoTargets = errors.New("no target locales resolved")

	// ErrInvalid wraps schema validation failures.
	ErrInvalid = errors.New("invalid configuration")
)

// Defaults.
const (
	DefaultServer        = "https://translation-server.survos.com"
	DefaultTimeout       = 10 * time.Second
	DefaultDriver        = "sqlite3"
	DefaultDatabase      = "lingua.db"
	DefaultBatchSize     = 200
	DefaultPullBatchSize = 500
	DefaultMaxPolls      = 20
	DefaultStopThreshold = 100
	DefaultFile          = "lingua.yaml"
	DefaultEnvFile       = ".env"

	// wipProxy is used for local development hosts ending in .wip.
	wipProxy = "http://127.0.0.1:7080"
)

// Config is the resolved configuration.
type Config struct {
	Server        string
	APIKey        string
	Timeout       time.Duration
	Proxy         string
	Driver        string
	Database      string
	BatchSize     int
	PullBatchSize int
	PollInterval  time.Duration
	MaxPolls      int
	StopThreshold float64
	Targets       []string
	Engine        string
	WebhookKey    string
	// InProcess serves requests from the embedded sandbox instead of the network.
	InProcess bool
	// Handoff is the command run after a converged sync.
	Handoff []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:        DefaultServer,
		Timeout:       DefaultTimeout,
		Driver:        DefaultDriver,
		Database:      DefaultDatabase,
		BatchSize:     DefaultBatchSize,
		PullBatchSize: DefaultPullBatchSize,
		MaxPolls:      DefaultMaxPolls,
		StopThreshold: DefaultStopThreshold,
	}
}

// Options controls Load.
type Options struct {
	// File is the YAML config path. Empty means DefaultFile if it exists.
	File string
	// EnvFile is a dotenv path. Empty means DefaultEnvFile if it exists.
	EnvFile string
	// LookupEnv reads the environment (default os.LookupEnv).
	LookupEnv func(string) (string, bool)
	// Override applies caller flags last.
	Override func(*Config)
}

// fileConfig is the YAML document shape.
type fileConfig struct {
	Server        string   `yaml:"server"`
	APIKey        string   `yaml:"api_key"`
	Timeout       string   `yaml:"timeout"`
	Proxy         *string  `yaml:"proxy"`
	Driver        string   `yaml:"driver"`
	Database      string   `yaml:"database"`
	BatchSize     int      `yaml:"batch_size"`
	PullBatchSize int      `yaml:"pull_batch_size"`
	PollInterval  string   `yaml:"poll_interval"`
	MaxPolls      *int     `yaml:"max_polls"`
	StopThreshold *float64 `yaml:"stop_threshold"`
	Targets       []string `yaml:"targets"`
	Engine        string   `yaml:"engine"`
	WebhookKey    string   `yaml:"webhook_key"`
	InProcess     bool     `yaml:"in_process"`
	Handoff       []string `yaml:"handoff"`
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	proxySet := false

	file := opts.File
	if file == "" && exists(DefaultFile) {
		file = DefaultFile
	}
	if file != "" {
		set, err := applyFile(&cfg, file)
		if err != nil {
			return nil, err
		}
		proxySet = set
	}

	env, err := environment(opts)
	if err != nil {
		return nil, err
	}
	set, err := applyEnv(&cfg, env)
	if err != nil {
		return nil, err
	}
	proxySet = proxySet || set

	if opts.Override != nil {
		before := cfg.Proxy
		opts.Override(&cfg)
		proxySet = proxySet || cfg.Proxy != before
	}

	cfg.Server = strings.TrimRight(cfg.Server, "/")
	cfg.Targets = keys.UniqueLocales(cfg.Targets)
	if !proxySet {
		cfg.Proxy = DeriveProxy(cfg.Server)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return false, fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.Server, fc.Server)
	setString(&cfg.APIKey, fc.APIKey)
	setString(&cfg.Driver, fc.Driver)
	setString(&cfg.Database, fc.Database)
	setString(&cfg.Engine, fc.Engine)
	setString(&cfg.WebhookKey, fc.WebhookKey)
	if fc.Timeout != "" {
		d, err := ParseSeconds(fc.Timeout)
		if err != nil {
			return false, fmt.Errorf("config %s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}
	if fc.PollInterval != "" {
		d, err := ParseSeconds(fc.PollInterval)
		if err != nil {
			return false, fmt.Errorf("config %s: poll_interval: %w", path, err)
		}
		cfg.PollInterval = d
	}
	if fc.BatchSize != 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if fc.PullBatchSize != 0 {
		cfg.PullBatchSize = fc.PullBatchSize
	}
	if fc.MaxPolls != nil {
		cfg.MaxPolls = *fc.MaxPolls
	}
	if fc.StopThreshold != nil {
		cfg.StopThreshold = *fc.StopThreshold
	}
	if len(fc.Targets) > 0 {
		cfg.Targets = fc.Targets
	}
	if len(fc.Handoff) > 0 {
		cfg.Handoff = fc.Handoff
	}
	cfg.InProcess = cfg.InProcess || fc.InProcess

	if fc.Proxy != nil {
		cfg.Proxy = *fc.Proxy
		return true, nil
	}
	return false, nil
}

// environment merges the dotenv file under the process environment.
func environment(opts Options) (func(string) (string, bool), error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFile := opts.EnvFile
	if envFile == "" && exists(DefaultEnvFile) {
		envFile = DefaultEnvFile
	}
	var dotenv map[string]string
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		dotenv = m
	}

	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) (bool, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LINGUA_BASE_URI", &cfg.Server)
	str("LINGUA_API_KEY", &cfg.APIKey)
	str("LINGUA_DRIVER", &cfg.Driver)
	str("LINGUA_DATABASE", &cfg.Database)
	str("LINGUA_ENGINE", &cfg.Engine)
	str("LINGUA_WEBHOOK_KEY", &cfg.WebhookKey)

	if v, ok := lookup("LINGUA_TIMEOUT"); ok && v != "" {
		d, err := ParseSeconds(v)
		if err != nil {
			return false, fmt.Errorf("LINGUA_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v, ok := lookup("LINGUA_TARGETS"); ok && v != "" {
		cfg.Targets = keys.ParseLocales(v)
	}
	if v, ok := lookup("LINGUA_PROXY"); ok {
		cfg.Proxy = v
		return true, nil
	}
	return false, nil
}

// DeriveProxy returns the local development proxy for .wip hosts.
func DeriveProxy(server string) string {
	u, err := url.Parse(server)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), ".wip") {
		return wipProxy
	}
	return ""
}

// ResolveTargets picks flag targets, then configured targets. It fails with
// ErrNoTargets when both are empty.
func (c *Config) ResolveTargets(flag []string) ([]string, error) {
	if t := keys.UniqueLocales(flag); len(t) > 0 {
		return t, nil
	}
	if len(c.Targets) > 0 {
		return append([]string(nil), c.Targets...), nil
	}
	return nil, ErrNoTargets
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg *Config) error {
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	targets := cfg.Targets
	if targets == nil {
		targets = []string{}
	}
	view := map[string]any{
		"server":          cfg.Server,
		"timeout":         cfg.Timeout.Seconds(),
		"proxy":           cfg.Proxy,
		"driver":          cfg.Driver,
		"database":        cfg.Database,
		"batch_size":      cfg.BatchSize,
		"pull_batch_size": cfg.PullBatchSize,
		"poll_interval":   cfg.PollInterval.Seconds(),
		"max_polls":       cfg.MaxPolls,
		"stop_threshold":  cfg.StopThreshold,
		"engine":          cfg.Engine,
		"targets":         targets,
	}

	v := def.Unify(cctx.Encode(view))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ParseSeconds accepts Go durations ("1m30s") and bare seconds ("10", "2.5").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
