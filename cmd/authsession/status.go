package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// sessionStatus is what the status command reports.
type sessionStatus struct {
	TokenURL        string
	Service         string
	HasToken        bool
	Valid           bool
	TokenType       string
	ExpiresAt       time.Time
	HasRefreshToken bool
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token",
		Long: `Show whether a token is stored, whether it is still valid, when it expires
and whether it can be refreshed. Token values are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, session, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			token, err := session.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			status := sessionStatus{
				TokenURL: cfg.TokenURL,
				Service:  session.Store.Service(),
				HasToken: token != nil,
				Valid:    session.HasValidAccessToken(cmd.Context()),
			}
			if token != nil {
				status.TokenType = token.TokenType
				status.ExpiresAt = token.ExpiresAt
				status.HasRefreshToken = token.Refreshable()
			}

			renderStatus(cmd.OutOrStdout(), status, time.Now())
			return nil
		},
	}
}

func renderStatus(w io.Writer, s sessionStatus, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Property", "Value"})

	t.AppendRow(table.Row{"Token endpoint", s.TokenURL})
	t.AppendRow(table.Row{"Service", s.Service})
	if !s.HasToken {
		t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Not signed in")})
		t.Render()
		return
	}

	t.AppendRow(table.Row{"Status", formatValidity(s)})
	t.AppendRow(table.Row{"Token type", s.TokenType})
	t.AppendRow(table.Row{"Expires", formatExpiry(s.ExpiresAt, now)})
	if s.HasRefreshToken {
		t.AppendRow(table.Row{"Refresh", text.FgGreen.Sprint("Available")})
	} else {
		t.AppendRow(table.Row{"Refresh", text.FgHiBlack.Sprint("Not available")})
	}
	t.Render()
}

func formatValidity(s sessionStatus) string {
	switch {
	case s.Valid:
		return text.FgGreen.Sprint("Valid")
	case s.ExpiresAt.IsZero():
		return text.FgGreen.Sprint("Valid (no expiry)")
	case s.HasRefreshToken:
		return text.FgYellow.Sprint("Expired, will refresh")
	default:
		return text.FgRed.Sprint("Expired")
	}
}

func formatExpiry(expiresAt, now time.Time) string {
	if expiresAt.IsZero() {
		return "never"
	}
	when := expiresAt.Local().Format(time.RFC3339)
	if expiresAt.Before(now) {
		return when + " (" + now.Sub(expiresAt).Round(time.Second).String() + " ago)"
	}
	return when + " (in " + expiresAt.Sub(now).Round(time.Second).String() + ")"
}
