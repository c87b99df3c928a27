package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/testutil"
)

// tokenServer is a token endpoint plus one protected resource.
type tokenServer struct {
	*httptest.Server
	issued    atomic.Int32
	refreshes atomic.Int32
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad credentials"}`))
				return
			}
		case "refresh_token":
			ts.refreshes.Add(1)
		case "urn:example:grant":
			if r.PostForm.Get("assertion") != "xyz" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
				return
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
			return
		}

		n := ts.issued.Add(1)
		_, _ = fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-%d"}`, n, n)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("protected data"))
	})

	ts.Server = testutil.NewLocalHTTPServer(t, mux)
	t.Cleanup(ts.Close)
	return ts
}

// writeConfig writes a config using the file store in a temp directory.
func writeConfig(t *testing.T, tokenURL string) string {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`
token_url = %q

[client]
id = "cli"

[store]
driver = "file"

[store.drivers.file]
path = %q

[parser]
format = "oauth2"
`, tokenURL, filepath.Join(dir, "tokens.toml"))

	path := filepath.Join(dir, "authsession.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, configPath string, args ...string) result {
	t.Helper()
	return runCLIWithInput(t, configPath, "", args...)
}

func runCLIWithInput(t *testing.T, configPath, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&app{lookupEnv: func(string) (string, bool) { return "", false }})
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	code := ExitCodeSuccess
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(&stderr, "Error: %v\n", err)
		code = exitCode(err)
	}
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestLogin(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLI(t, cfg, "login", "--username", "alice", "--password", "secret")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed in, token expires")

	res = runCLI(t, cfg, "token")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Equal(t, "Bearer token-1\n", res.stdout)
}

func TestLogin_PasswordStdin(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLIWithInput(t, cfg, "secret\n", "login", "-u", "alice", "--password-stdin")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
}

func TestLogin_Rejected(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLI(t, cfg, "login", "--username", "alice", "--password", "wrong")
	assert.Equal(t, ExitCodeAuthFailed, res.code)
	assert.Contains(t, res.stderr, "bad credentials")
}

func TestLogin_MissingUsername(t *testing.T) {
	res := runCLI(t, writeConfig(t, "https://auth.example.com/token"), "login", "--password", "secret")
	assert.Equal(t, ExitCodeError, res.code)
	assert.Contains(t, res.stderr, "--username is required")
}

func TestGrant(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLI(t, cfg, "grant", "--type", "urn:example:grant", "--param", "assertion=xyz")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed in")

	res = runCLI(t, cfg, "grant", "--type", "urn:example:grant", "--param", "assertion=nope")
	assert.Equal(t, ExitCodeAuthFailed, res.code)
}

func TestToken_NotSignedIn(t *testing.T) {
	server := newTokenServer(t)
	res := runCLI(t, writeConfig(t, server.URL+"/token"), "token")

	assert.Equal(t, ExitCodeAuthRequired, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestInvalidate_RefreshesOnNextUse(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	require.Equal(t, ExitCodeSuccess, runCLI(t, cfg, "login", "-u", "alice", "-p", "secret").code)

	res := runCLI(t, cfg, "invalidate")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "invalidated")

	res = runCLI(t, cfg, "status")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Expired, will refresh")

	res = runCLI(t, cfg, "token")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Equal(t, "Bearer token-2\n", res.stdout)
	assert.Equal(t, int32(1), server.refreshes.Load())
}

func TestClear(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	require.Equal(t, ExitCodeSuccess, runCLI(t, cfg, "login", "-u", "alice", "-p", "secret").code)

	res := runCLI(t, cfg, "clear")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)

	res = runCLI(t, cfg, "status")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Not signed in")

	assert.Equal(t, ExitCodeAuthRequired, runCLI(t, cfg, "token").code)
}

func TestStatus(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	require.Equal(t, ExitCodeSuccess, runCLI(t, cfg, "login", "-u", "alice", "-p", "secret").code)

	res := runCLI(t, cfg, "status")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, server.URL+"/token")
	assert.Contains(t, res.stdout, "Valid")
	assert.Contains(t, res.stdout, "Available")
	assert.NotContains(t, res.stdout, "token-1", "token values must not be printed")
	assert.NotContains(t, res.stdout, "refresh-1", "token values must not be printed")
}

func TestGet(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLI(t, cfg, "get", server.URL+"/data")
	assert.Equal(t, ExitCodeAuthRequired, res.code)

	require.Equal(t, ExitCodeSuccess, runCLI(t, cfg, "login", "-u", "alice", "-p", "secret").code)

	res = runCLI(t, cfg, "get", server.URL+"/data")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Equal(t, "protected data", res.stdout)
}

func TestGet_ErrorStatus(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")
	require.Equal(t, ExitCodeSuccess, runCLI(t, cfg, "login", "-u", "alice", "-p", "secret").code)

	res := runCLI(t, cfg, "get", server.URL+"/missing")
	assert.Equal(t, ExitCodeError, res.code)
	assert.Contains(t, res.stderr, "unexpected response status 404")
}

func TestFlagOverrides(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, "https://unused.example.com/token")

	res := runCLI(t, cfg, "--token-url", server.URL+"/token", "--store", "memory",
		"login", "-u", "alice", "-p", "secret")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)

	// The memory store does not outlive the process.
	res = runCLI(t, cfg, "--token-url", server.URL+"/token", "--store", "memory", "token")
	assert.Equal(t, ExitCodeAuthRequired, res.code)
}

func TestVerboseLogsToStderr(t *testing.T) {
	server := newTokenServer(t)
	cfg := writeConfig(t, server.URL+"/token")

	res := runCLI(t, cfg, "--verbose", "login", "-u", "alice", "-p", "secret")
	require.Equal(t, ExitCodeSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "authsession:")
	assert.NotContains(t, res.stderr, "secret")
}

func TestInvalidConfig(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "missing.toml"), "status")
	assert.Equal(t, ExitCodeError, res.code)
	assert.Contains(t, res.stderr, "failed to read config file")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not authorized", err: authsession.ErrNotAuthorized, want: ExitCodeAuthRequired},
		{name: "no refresh token", err: fmt.Errorf("wrapped: %w", authsession.ErrNoRefreshToken), want: ExitCodeAuthRequired},
		{name: "oauth error", err: &authsession.OAuthError{Code: authsession.ErrorCode("invalid_grant")}, want: ExitCodeAuthFailed},
		{name: "protocol error", err: &authsession.ProtocolError{StatusCode: 500}, want: ExitCodeError},
		{name: "other", err: errors.New("boom"), want: ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestFormatExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "never", formatExpiry(time.Time{}, now))
	assert.Contains(t, formatExpiry(now.Add(90*time.Second), now), "(in 1m30s)")
	assert.Contains(t, formatExpiry(now.Add(-time.Hour), now), "(1h0m0s ago)")
}

func TestRenderStatus_NotSignedIn(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, sessionStatus{TokenURL: "https://auth.example.com/token", Service: "svc"}, time.Now())

	out := buf.String()
	assert.Contains(t, out, "Not signed in")
	assert.NotContains(t, out, "Token type")
}

func TestRootCmd_Version(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&app{})
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "authsession version dev\n", buf.String())
}

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"no-such-command"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, ExitCodeError, code)
	assert.Contains(t, stderr.String(), "unknown command")
}
