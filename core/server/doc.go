// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structure for the listen port, the API key and the
// metrics endpoint.
package server
