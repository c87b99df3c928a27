package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/httpclient"
	"github.com/AmmannChristian/go-authsession/oauth2client"
	"github.com/AmmannChristian/go-authsession/tokenstore"
)

// Session is an Authenticator together with the store it persists to.
type Session struct {
	*authsession.Authenticator

	// Store is the token store the Authenticator uses.
	Store *tokenstore.Store
}

// Close stops the Authenticator and releases the store's backend.
func (s *Session) Close() error {
	return errors.Join(s.Authenticator.Close(), s.Store.Close())
}

// NewAuthenticator assembles an Authenticator from cfg: token store, token
// endpoint connector, response parser and client credentials. If logger is nil
// and cfg.Logging.Enabled is set, the standard logger is used.
//
// The returned Session must be closed.
func NewAuthenticator(ctx context.Context, cfg *Config, logger authsession.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("config: configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil && cfg.Logging.Enabled {
		logger = log.Default()
	}

	store, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	connector, err := NewConnector(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := []authsession.Option{
		authsession.WithStore(store),
		authsession.WithConnector(connector),
		authsession.WithParser(NewParser(cfg.Parser.Format)),
	}
	if cfg.Client.ID != "" {
		opts = append(opts, authsession.WithCredentials(authsession.Credentials{
			ID:     cfg.Client.ID,
			Secret: cfg.Client.Secret,
		}))
	}
	if logger != nil {
		opts = append(opts, authsession.WithLogger(logger))
	}

	auth, err := authsession.New(cfg.TokenURL, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Session{Authenticator: auth, Store: store}, nil
}

// NewStore opens the token store selected by cfg.Store.Driver.
func NewStore(ctx context.Context, cfg *Config, logger authsession.Logger) (*tokenstore.Store, error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []tokenstore.Option{tokenstore.WithService(cfg.Store.Service)}
	if logger != nil {
		opts = append(opts, tokenstore.WithLogger(logger))
	}
	return tokenstore.New(backend, opts...), nil
}

func openBackend(ctx context.Context, cfg *Config, logger authsession.Logger) (tokenstore.Backend, error) {
	driver := cfg.Store.Driver

	var options any
	switch driver {
	case DriverMemory:
		return tokenstore.NewMemoryBackend(), nil
	case DriverFile:
		options = &FileOptions{}
	case DriverRedis:
		options = &tokenstore.RedisConfig{}
	case DriverSQL:
		options = &SQLOptions{}
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", driver)
	}

	unused, err := cfg.DecodeDriver(driver, options)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 && logger != nil {
		logger.Printf("config: ignoring unknown keys in store.drivers.%s: %s", driver, strings.Join(unused, ", "))
	}

	switch o := options.(type) {
	case *FileOptions:
		return tokenstore.NewFileBackend(o.Path)
	case *tokenstore.RedisConfig:
		backend, err := tokenstore.NewRedisBackendFromConfig(ctx, *o)
		if err != nil {
			return nil, fmt.Errorf("config: failed to connect to redis at %s: %w", o.Address, err)
		}
		return backend, nil
	default:
		return tokenstore.OpenSQLite(ctx, options.(*SQLOptions).DSN)
	}
}

// NewConnector builds the token endpoint connector from cfg.HTTP.
func NewConnector(cfg *Config, logger authsession.Logger) (authsession.ServerConnector, error) {
	timeout := cfg.HTTP.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	builder := httpclient.NewBuilder().
		WithTimeout(timeout).
		WithRetry(cfg.HTTP.MaxRetries + 1)

	if tlsCfg := cfg.HTTP.TLS; tlsCfg.Enabled() {
		if tlsCfg.CAFile != "" || tlsCfg.CertFile != "" {
			builder.WithTLS(tlsCfg.CAFile, tlsCfg.CertFile, tlsCfg.KeyFile)
		}
		if tlsCfg.InsecureSkipVerify {
			builder.WithInsecureSkipVerify()
		}
	}
	if logger != nil {
		builder.WithLogger(logger)
	}

	connector, err := builder.BuildConnector()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return connector, nil
}

// NewParser returns the token parser for format. Unknown formats fall back to
// authsession.DefaultParser.
func NewParser(format string) authsession.TokenParser {
	switch format {
	case FormatOAuth2:
		return oauth2client.StandardParser{}
	case FormatJWT:
		return oauth2client.JWTParser{Base: oauth2client.StandardParser{}}
	default:
		return authsession.DefaultParser{}
	}
}
