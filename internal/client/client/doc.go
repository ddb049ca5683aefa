// Package client contains the CLI's building blocks for talking to a cutout
// server.
//
// The Client interface is the transport contract: Register, Login, Logout,
// Me, RemoveBackground and Ping. HTTPClient implements it over the JSON
// HTTP surface; it keeps the session cookie in a cookie jar and sends the
// API key as a bearer token on the programmatic endpoint.
//
// Common conditions are exposed as sentinel errors matched with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrLocalDataNotAvailable. Other non-2xx
// responses surface as *APIError carrying the server's message.
//
// InitDatabase opens the local SQLite store and applies its embedded goose
// migrations.
package client
