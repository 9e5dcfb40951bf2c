package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"

	"asset-sync/core/database"
	"asset-sync/core/logger"
	"asset-sync/core/reconcile"
	"asset-sync/core/server"
	"asset-sync/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the report archive (S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the destination document store.
	Database database.Config `mapstructure:"database"`
	// Sync holds the synchronization engine settings.
	Sync reconcile.Config `mapstructure:"sync"`
}

// FileName is the optional YAML file read from the config directory.
const FileName = "asset-sync.yaml"

// LoadConfig loads configuration from dir. Sources, lowest precedence first:
// struct defaults, dir/asset-sync.yaml, dir/.env, then the process environment.
func LoadConfig(dir string) (*Config, error) {
	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	v.SetConfigFile(filepath.Join(dir, FileName))
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	// Map environment variables to nested keys (e.g. SYNC_DRY_RUN -> sync.dry_run)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings that would only fail later, deep inside a run.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", database.DriverMySQL, database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	if c.Sync.LockTimeoutSeconds < 0 {
		return fmt.Errorf("sync lock timeout must not be negative, got %d", c.Sync.LockTimeoutSeconds)
	}
	if _, err := c.Sync.Options(); err != nil {
		return err
	}
	return nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
