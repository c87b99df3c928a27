package main

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/config"
)

// app holds the global flags shared by all commands.
type app struct {
	configPath  string
	envFile     string
	tokenURL    string
	clientID    string
	storeDriver string
	verbose     bool

	lookupEnv func(string) (string, bool)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authsession",
		Short: "Manage an OAuth 2.0 token session",
		Long: `authsession signs in against an OAuth 2.0 token endpoint, keeps the
token in a persistent store and refreshes it when it expires.

Settings are read from a TOML file, a .env file and AUTHSESSION_* environment
variables; flags take precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(`{{printf "authsession version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a TOML config file")
	flags.StringVar(&a.envFile, "env-file", "", "path to a .env file (default .env, if present)")
	flags.StringVar(&a.tokenURL, "token-url", "", "token endpoint URL")
	flags.StringVar(&a.clientID, "client-id", "", "OAuth client identifier")
	flags.StringVar(&a.storeDriver, "store", "", "token store driver: "+strings.Join(config.Drivers(), ", "))
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log token operations to stderr")

	cmd.AddCommand(
		newLoginCmd(a),
		newGrantCmd(a),
		newStatusCmd(a),
		newInvalidateCmd(a),
		newClearCmd(a),
		newTokenCmd(a),
		newGetCmd(a),
	)
	return cmd
}

// open loads the configuration and assembles the session for cmd.
func (a *app) open(ctx context.Context, cmd *cobra.Command) (*config.Config, *config.Session, error) {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	opts := config.LoaderOptions{
		ConfigPath: a.configPath,
		EnvFile:    a.envFile,
		LookupEnv:  a.lookupEnv,
		Logger:     logger,
	}
	if cmd.Flags().Changed("token-url") {
		opts.Overrides.TokenURL = &a.tokenURL
	}
	if cmd.Flags().Changed("client-id") {
		opts.Overrides.ClientID = &a.clientID
	}
	if cmd.Flags().Changed("store") {
		opts.Overrides.StoreDriver = &a.storeDriver
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, nil, err
	}

	var sessionLogger authsession.Logger
	if a.verbose {
		sessionLogger = logger
	}

	session, err := config.NewAuthenticator(ctx, cfg, sessionLogger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, session, nil
}
