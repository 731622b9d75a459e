package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when one of the four OAuth secrets is absent.
var ErrMissingCredential = errors.New("missing credential")

// Credential keys, shared by the secrets file and Keys().
const (
	KeyConsumerKey       = "con_key"
	KeyConsumerSecret    = "con_secret"
	KeyAccessToken       = "acc_token"
	KeyAccessTokenSecret = "acc_token_secret"
)

// Credentials is the OAuth 1.0a secret bundle used for search and posting.
type Credentials struct {
	ConsumerKey       string `yaml:"con_key"`
	ConsumerSecret    string `yaml:"con_secret"`
	AccessToken       string `yaml:"acc_token"`
	AccessTokenSecret string `yaml:"acc_token_secret"`
}

var credentialEnv = map[string]string{
	KeyConsumerKey:       "NICEGUY_CON_KEY",
	KeyConsumerSecret:    "NICEGUY_CON_SECRET",
	KeyAccessToken:       "NICEGUY_ACC_TOKEN",
	KeyAccessTokenSecret: "NICEGUY_ACC_TOKEN_SECRET",
}

// LoadCredentials reads a standalone secrets YAML file. Missing keys are
// reported later by Validate, after environment overrides are applied.
func LoadCredentials(path string) (Credentials, error) {
	var c Credentials
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return c, nil
}

// ResolveEnv fills empty fields from NICEGUY_* environment variables.
func (c *Credentials) ResolveEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(os.Getenv(credentialEnv[key]))
		}
	}
	fill(&c.ConsumerKey, KeyConsumerKey)
	fill(&c.ConsumerSecret, KeyConsumerSecret)
	fill(&c.AccessToken, KeyAccessToken)
	fill(&c.AccessTokenSecret, KeyAccessTokenSecret)
}

// Merge returns c with empty fields taken from other.
func (c Credentials) Merge(other Credentials) Credentials {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Credentials{
		ConsumerKey:       pick(c.ConsumerKey, other.ConsumerKey),
		ConsumerSecret:    pick(c.ConsumerSecret, other.ConsumerSecret),
		AccessToken:       pick(c.AccessToken, other.AccessToken),
		AccessTokenSecret: pick(c.AccessTokenSecret, other.AccessTokenSecret),
	}
}

// Keys returns the bundle as a fixed-key map.
func (c Credentials) Keys() map[string]string {
	return map[string]string{
		KeyConsumerKey:       c.ConsumerKey,
		KeyConsumerSecret:    c.ConsumerSecret,
		KeyAccessToken:       c.AccessToken,
		KeyAccessTokenSecret: c.AccessTokenSecret,
	}
}

// Validate reports every absent key in one error wrapping ErrMissingCredential.
func (c Credentials) Validate() error {
	var missing []string
	keys := c.Keys()
	for _, k := range []string{KeyConsumerKey, KeyConsumerSecret, KeyAccessToken, KeyAccessTokenSecret} {
		if strings.TrimSpace(keys[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

// String redacts the secrets so a Credentials value is safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{con_key:%s}", redact(c.ConsumerKey))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
