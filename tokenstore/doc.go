// Package tokenstore provides persistent implementations of authsession.TokenStore.
//
// A Store keeps the token as four string entries in a service namespace:
// access_token, token_type, expires_at (decimal seconds since the Unix epoch)
// and refresh_token. The entries live in a Backend:
//
//   - MemoryBackend: process memory
//   - FileBackend: a TOML document, written atomically with mode 0600
//   - RedisBackend: one Redis hash per namespace, shared between processes
//   - SQLBackend: the credential_entries table of a GORM database (SQLite via OpenSQLite)
//
// # Usage
//
//	backend, err := tokenstore.NewFileBackend("/home/alice/.config/authsession/tokens.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := tokenstore.New(backend, tokenstore.WithService("com.example.app"))
//
//	auth, err := authsession.New(tokenURL, authsession.WithStore(store))
//
// A namespace missing access_token or token_type reads as "no token". An
// expires_at that cannot be parsed reads as "no expiry".
package tokenstore
