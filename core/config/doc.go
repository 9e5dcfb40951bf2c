// Package config provides configuration management for the sync service.
//
// It utilizes Viper for loading configuration from environment variables, an
// optional .env file and an optional asset-sync.yaml file. Defaults come from
// the `default` struct tags of each partial configuration. The environment
// always wins; the YAML file only fills what the environment leaves unset.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: destination document store connection (mysql, postgres, sqlite)
//   - Storage: S3/MinIO credentials and the report bucket
//   - Log: Logging level and format
//   - Sync: cross reference keys, name patterns, dry-run and lock timeout
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Sync.Options()
package config
