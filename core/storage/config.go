package storage

// Config locates the S3-compatible bucket synchronization reports are
// archived in. Endpoint may carry an http:// or https:// scheme.
type Config struct {
	Endpoint  string `mapstructure:"endpoint" default:"localhost:9000"`
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	UseSSL    bool   `mapstructure:"use_ssl" default:"false"`
	// Bucket is created on server start when missing.
	Bucket string `mapstructure:"bucket" default:"reports"`
	Region string `mapstructure:"region" default:""`
	// TimeoutSeconds bounds connection setup, not whole transfers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
