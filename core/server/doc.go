// Package server holds the HTTP server configuration.
//
// While the serve command handles the server startup, this package defines the
// configuration structure for the listen port and the API key protecting the
// relation inspection endpoints.
package server
