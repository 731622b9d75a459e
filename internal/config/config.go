package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Search modes.
const (
	ModeLiteral = "literal"
	ModeQuoted  = "quoted"
	ModeRegexp  = "regexp"
)

// Reply output modes.
const (
	OutputPost    = "post"
	OutputPreview = "preview"
)

// Reply failure policies.
const (
	OnErrorFailFast = "fail_fast"
	OnErrorIsolate  = "isolate"
)

// Search API backends.
const (
	APIv1 = "v1.1"
	APIv2 = "v2"
)

// Config is the application's configuration model.
// It captures credentials, the search criterion, and reply behavior.
type Config struct {
	Credentials Credentials   `yaml:"credentials"`
	Search      SearchConfig  `yaml:"search"`
	Reply       ReplyConfig   `yaml:"reply"`
	Log         LogConfig     `yaml:"log"`
	Metrics     MetricsConfig `yaml:"metrics"`

	// Optional standalone secrets file holding the four credential keys.
	CredentialsFile string `yaml:"credentialsFile"`

	// Overrides the X API root for the selected search api and for posting.
	APIBaseURL string `yaml:"apiBaseURL,omitempty"`
}

type SearchConfig struct {
	// "v1.1" (OAuth 1.0a) or "v2" (bearer token)
	API string `yaml:"api"`
	// If empty, read from env X_BEARER_TOKEN. Only used by the v2 backend.
	BearerToken string `yaml:"bearerToken"`
	Pattern     string `yaml:"pattern"`
	// "literal", "quoted" or "regexp"
	Mode string `yaml:"mode"`
	// Platform query sent in regexp mode; defaults to the expression's literal prefix
	Terms           string `yaml:"terms"`
	Lang            string `yaml:"lang"`
	Locale          string `yaml:"locale"`
	Count           int    `yaml:"count"`
	ResultType      string `yaml:"resultType"` // mixed, recent, popular
	ExcludeRetweets bool   `yaml:"excludeRetweets"`
}

type ReplyConfig struct {
	Corpus string `yaml:"corpus"`
	// "post" submits to X, "preview" prints drafts to stdout
	Mode            string `yaml:"mode"`
	ReloadEachReply bool   `yaml:"reloadEachReply"`
	// "fail_fast" stops at the first rejected post, "isolate" keeps going
	OnError string `yaml:"onError"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type MetricsConfig struct {
	// If empty, read from env METRICS_ADDR
	Addr     string `yaml:"addr"`
	Textfile string `yaml:"textfile"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Search: SearchConfig{
			API:     APIv1,
			Pattern: "結婚",
			Mode:    ModeLiteral,
			Lang:    "ja",
			Locale:  "ja",
			Count:   15,
		},
		Reply: ReplyConfig{
			Corpus:  "bot.txt",
			Mode:    OutputPost,
			OnError: OnErrorFailFast,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	c.Credentials.ResolveEnv()
	if c.Search.BearerToken == "" {
		c.Search.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Validate checks the non-secret settings. Credentials are checked separately
// by Credentials.Validate.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Search.Pattern) == "" {
		errs = append(errs, errors.New("search.pattern cannot be empty"))
	}
	switch c.Search.Mode {
	case ModeLiteral, ModeQuoted, ModeRegexp:
	default:
		errs = append(errs, fmt.Errorf("search.mode %q must be one of literal, quoted, regexp", c.Search.Mode))
	}
	switch c.Search.API {
	case APIv1:
	case APIv2:
		if c.Search.BearerToken == "" {
			errs = append(errs, errors.New("search.bearerToken (or X_BEARER_TOKEN) is required for the v2 api"))
		}
	default:
		errs = append(errs, fmt.Errorf("search.api %q must be v1.1 or v2", c.Search.API))
	}
	if c.Search.Count < 0 {
		errs = append(errs, errors.New("search.count must be >= 0"))
	}
	switch c.Reply.Mode {
	case OutputPost, OutputPreview:
	default:
		errs = append(errs, fmt.Errorf("reply.mode %q must be post or preview", c.Reply.Mode))
	}
	switch c.Reply.OnError {
	case OnErrorFailFast, OnErrorIsolate:
	default:
		errs = append(errs, fmt.Errorf("reply.onError %q must be fail_fast or isolate", c.Reply.OnError))
	}
	if c.Reply.Corpus == "" {
		errs = append(errs, errors.New("reply.corpus cannot be empty"))
	}
	return errors.Join(errs...)
}

// Load reads YAML config from path, merges the credentials file if one is
// named, and resolves environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.CredentialsFile != "" {
		credPath := cfg.CredentialsFile
		if !filepath.IsAbs(credPath) {
			credPath = filepath.Join(filepath.Dir(path), credPath)
		}
		fromFile, err := LoadCredentials(credPath)
		if err != nil {
			return cfg, err
		}
		cfg.Credentials = cfg.Credentials.Merge(fromFile)
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
