package server

import "strings"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// MetricsPath exposes Prometheus metrics. Empty disables the endpoint.
	MetricsPath string `mapstructure:"metrics_path" default:"/metrics"`
}

// Addr returns the listen address for the configured port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
