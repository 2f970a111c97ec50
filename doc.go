// Package codeboard implements the authentication core of the codeboard
// backend: GitHub OAuth sign-in, short-lived JWT access tokens, and a
// rotating refresh-token session with the token hash stored at rest.
//
// # Architecture
//
// Account: the identity record created the first time an external ID is seen.
// It holds the provider linkage, the public profile fields, and the hash of
// the single currently-valid refresh token.
//
// Issuer: mints and verifies the access/refresh JWT pair. The two token kinds
// use distinct signing secrets and distinct lifetimes.
//
// Sessions: the state machine over login, refresh and logout. Refresh rotates
// the stored hash with a compare-and-swap so a refresh token is usable exactly
// once; replaying a rotated-out token revokes the session.
//
// Bridge: maps a verified provider profile onto an account, resolving the
// benign duplicate-create race in favor of the first writer.
//
// # Basic Usage
//
// Wire the pieces with a store and mount the HTTP surface:
//
//	accounts := fs.NewAccountStore("/path/to/data")
//	issuer := &codeboard.Issuer{
//	    AccessSecret:  []byte(accessSecret),
//	    RefreshSecret: []byte(refreshSecret),
//	    Name:          "codeboard",
//	}
//	sessions := &codeboard.Sessions{Accounts: accounts, Issuer: issuer}
//	api := &codeboard.API{Sessions: sessions, CookieSecure: true}
//
//	r.HandleFunc("/auth/refresh", api.HandleRefresh).Methods(http.MethodPost)
//	r.HandleFunc("/auth/logout", api.HandleLogout).Methods(http.MethodPost)
//
// The OAuth handshake itself lives in the oauth2 sub-package; persistent
// stores live under stores/.
package codeboard
