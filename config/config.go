// Package config loads the settings of an authsession client from TOML, .env
// files and the environment, and assembles an Authenticator from them.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/AmmannChristian/go-authsession/tokenstore"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// Parser formats.
const (
	// FormatDefault is the camelCase token document (accessToken, tokenType,
	// expiresAt, refreshToken).
	FormatDefault = "default"
	// FormatOAuth2 is the RFC 6749 response (access_token, expires_in, ...).
	FormatOAuth2 = "oauth2"
	// FormatJWT is FormatOAuth2 with the expiry taken from the JWT exp claim
	// when expires_in is missing.
	FormatJWT = "jwt"
)

// DefaultTimeout bounds a single token request.
const DefaultTimeout = 30 * time.Second

// Config is the complete client configuration.
type Config struct {
	TokenURL string        `toml:"token_url"`
	Client   ClientConfig  `toml:"client"`
	Store    StoreConfig   `toml:"store"`
	HTTP     HTTPConfig    `toml:"http"`
	Parser   ParserConfig  `toml:"parser"`
	Logging  LoggingConfig `toml:"logging"`
}

// ClientConfig holds the OAuth client credentials. An empty ID disables
// client authentication; an empty Secret sends the identifier only.
type ClientConfig struct {
	ID     string `toml:"id"`
	Secret string `toml:"secret"`
}

// StoreConfig selects the token store driver. Drivers holds one table of
// options per driver, decoded when the driver is opened.
type StoreConfig struct {
	Driver  string                    `toml:"driver"`
	Service string                    `toml:"service"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// HTTPConfig configures the connection to the token endpoint.
type HTTPConfig struct {
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries uint          `toml:"max_retries"`
	TLS        TLSConfig     `toml:"tls"`
}

// TLSConfig holds optional CA and client certificate settings.
type TLSConfig struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Enabled reports whether any TLS setting deviates from the defaults.
func (c TLSConfig) Enabled() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != "" || c.InsecureSkipVerify
}

// ParserConfig selects how token responses are decoded.
type ParserConfig struct {
	Format string `toml:"format"`
}

// LoggingConfig enables logging to the standard logger.
type LoggingConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:  DriverMemory,
			Service: tokenstore.DefaultService,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultTimeout,
		},
		Parser: ParserConfig{
			Format: FormatDefault,
		},
	}
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return errors.New("config: token_url is required")
	}
	u, err := url.Parse(c.TokenURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid token_url %q", c.TokenURL)
	}

	if c.Client.ID == "" && c.Client.Secret != "" {
		return errors.New("config: client.secret requires client.id")
	}

	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverSQL:
	default:
		return fmt.Errorf("config: unknown store driver %q: must be one of %s",
			c.Store.Driver, strings.Join(Drivers(), ", "))
	}

	switch c.Parser.Format {
	case FormatDefault, FormatOAuth2, FormatJWT:
	default:
		return fmt.Errorf("config: unknown parser format %q: must be one of default, oauth2, jwt", c.Parser.Format)
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("config: http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	if (c.HTTP.TLS.CertFile == "") != (c.HTTP.TLS.KeyFile == "") {
		return errors.New("config: http.tls.cert_file and http.tls.key_file must be set together")
	}

	return nil
}

// Drivers returns the supported store drivers, sorted.
func Drivers() []string {
	drivers := []string{DriverMemory, DriverFile, DriverRedis, DriverSQL}
	sort.Strings(drivers)
	return drivers
}

// Setter is implemented by driver option structs that fill in defaults after
// decoding.
type Setter interface {
	ApplyDefaults()
}

// FileOptions configures the file driver.
type FileOptions struct {
	Path string `mapstructure:"path"`
}

// ApplyDefaults fills unset fields and expands a leading "~/".
func (o *FileOptions) ApplyDefaults() {
	if o.Path == "" {
		o.Path = filepath.Join("~", ".config", "authsession", "tokens.toml")
	}
	o.Path = expandHome(o.Path)
}

// SQLOptions configures the sql driver.
type SQLOptions struct {
	DSN string `mapstructure:"dsn"`
}

// ApplyDefaults fills unset fields.
func (o *SQLOptions) ApplyDefaults() {
	if o.DSN == "" {
		o.DSN = "authsession.db"
	}
}

// DecodeDriver decodes the options table of driver into c and reports keys
// that c does not know. If c implements Setter, ApplyDefaults is called.
func (c *Config) DecodeDriver(driver string, target any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(c.Store.Drivers[driver]); err != nil {
		return nil, fmt.Errorf("config: store.drivers.%s: %w", driver, err)
	}

	if s, ok := target.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
