package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Environment variables read by Load.
const (
	EnvTokenURL     = "AUTHSESSION_TOKEN_URL"
	EnvClientID     = "AUTHSESSION_CLIENT_ID"
	EnvClientSecret = "AUTHSESSION_CLIENT_SECRET"
	EnvStoreDriver  = "AUTHSESSION_STORE_DRIVER"
)

// DefaultEnvFile is read by Load when LoaderOptions.EnvFile is empty. It is
// optional.
const DefaultEnvFile = ".env"

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// EnvFile is a dotenv file whose variables apply below the process
	// environment. If empty, DefaultEnvFile is used when it exists; an
	// explicitly named file must exist.
	EnvFile string

	// Overrides are applied last, typically from CLI flags.
	Overrides Overrides

	// LookupEnv reads the process environment. If nil, os.LookupEnv is used.
	LookupEnv func(key string) (string, bool)

	// Logger receives warnings such as undecoded keys. Optional.
	Logger authsession.Logger
}

// Overrides holds values that take precedence over every other source. Nil
// fields are ignored.
type Overrides struct {
	TokenURL     *string
	ClientID     *string
	ClientSecret *string
	StoreDriver  *string
}

// Load loads configuration with the following precedence:
//  1. Defaults
//  2. TOML config file
//  3. dotenv file
//  4. Process environment
//  5. Overrides
//
// Unknown TOML keys produce a warning but do not fail the load. The result is
// validated.
func Load(opts LoaderOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("config: failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				// Driver tables are decoded later, when the driver is opened.
				if strings.HasPrefix(k.String(), "store.drivers.") {
					continue
				}
				keys = append(keys, k.String())
			}
			if len(keys) > 0 && opts.Logger != nil {
				opts.Logger.Printf("config: ignoring unknown keys in %s: %s", opts.ConfigPath, strings.Join(keys, ", "))
			}
		}
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	applyString(&cfg.TokenURL, env, EnvTokenURL)
	applyString(&cfg.Client.ID, env, EnvClientID)
	applyString(&cfg.Client.Secret, env, EnvClientSecret)
	applyString(&cfg.Store.Driver, env, EnvStoreDriver)

	applyOverride(&cfg.TokenURL, opts.Overrides.TokenURL)
	applyOverride(&cfg.Client.ID, opts.Overrides.ClientID)
	applyOverride(&cfg.Client.Secret, opts.Overrides.ClientSecret)
	applyOverride(&cfg.Store.Driver, opts.Overrides.StoreDriver)

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Parser.Format = strings.ToLower(strings.TrimSpace(cfg.Parser.Format))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: failed to read env file %s: %w", path, err)
	}
	return values, nil
}

func applyString(dst *string, env func(string) (string, bool), key string) {
	if v, ok := env(key); ok && v != "" {
		*dst = v
	}
}

func applyOverride(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
