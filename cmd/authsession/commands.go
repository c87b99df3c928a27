package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/config"
	"github.com/AmmannChristian/go-authsession/httpclient"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Long: `Request a token with the resource owner password grant and store it.

Examples:
  authsession login --username alice --password secret
  echo secret | authsession login --username alice --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if username == "" {
				return errors.New("--username is required")
			}

			_, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			token, err := session.RequestAccessToken(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			printSignedIn(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "resource owner username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "resource owner password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func newGrantCmd(a *app) *cobra.Command {
	var (
		grantType string
		params    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Sign in with an extension grant",
		Long: `Request a token with an arbitrary grant type and store it.

Examples:
  authsession grant --type urn:ietf:params:oauth:grant-type:jwt-bearer --param assertion=eyJ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			token, err := session.RequestAccessTokenWithGrantType(cmd.Context(), grantType, params)
			if err != nil {
				return err
			}
			printSignedIn(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&grantType, "type", "", "grant type URI")
	cmd.Flags().StringToStringVar(&params, "param", nil, "grant parameter as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newInvalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Mark the stored token as expired",
		Long: `Mark the stored access token as expired so the next use refreshes it.
The refresh token is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.InvalidateAccessToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Access token invalidated")
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.ClearAccessToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the Authorization header value",
		Long: `Print the value of the Authorization header for the stored token,
refreshing the token first if it has expired.

Examples:
  curl -H "Authorization: $(authsession token)" https://api.example.com/data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			header := http.Header{}
			if err := session.AuthenticateRequest(cmd.Context(), authsession.Header(header)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header.Get("Authorization"))
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get URL",
		Short: "Send an authenticated GET request",
		Long: `Send a GET request with the stored token and write the response body to
stdout. Responses other than 2xx are reported as errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			client, err := newResourceClient(cfg, session)
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("invalid URL: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("unexpected response status %s", resp.Status)
			}
			return nil
		},
	}
}

// newResourceClient builds an HTTP client with the token endpoint's TLS and
// timeout settings that authenticates through session.
func newResourceClient(cfg *config.Config, session *config.Session) (*http.Client, error) {
	builder := httpclient.NewBuilder().WithAuthenticator(session.Authenticator)
	if cfg.HTTP.Timeout > 0 {
		builder.WithTimeout(cfg.HTTP.Timeout)
	}
	if tlsCfg := cfg.HTTP.TLS; tlsCfg.Enabled() {
		if tlsCfg.CAFile != "" || tlsCfg.CertFile != "" {
			builder.WithTLS(tlsCfg.CAFile, tlsCfg.CertFile, tlsCfg.KeyFile)
		}
		if tlsCfg.InsecureSkipVerify {
			builder.WithInsecureSkipVerify()
		}
	}
	return builder.Build()
}

func printSignedIn(w io.Writer, token authsession.Token) {
	if token.HasExpiry() {
		fmt.Fprintf(w, "Signed in, token expires %s\n", token.ExpiresAt.Local().Format(time.RFC3339))
		return
	}
	fmt.Fprintln(w, "Signed in, token does not expire")
}
