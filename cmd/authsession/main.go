// Command authsession manages an OAuth 2.0 token session from the command
// line: sign in with a grant, inspect and invalidate the stored token, and send
// authenticated requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates there is no usable token and the user has to sign in.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the authorization server rejected a token request.
	ExitCodeAuthFailed = 3
)

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(&app{lookupEnv: os.LookupEnv})
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitCodeSuccess
}

// exitCode determines the exit code for err.
func exitCode(err error) int {
	if errors.Is(err, authsession.ErrNotAuthorized) || errors.Is(err, authsession.ErrNoRefreshToken) {
		return ExitCodeAuthRequired
	}

	var oauthErr *authsession.OAuthError
	if errors.As(err, &oauthErr) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}
