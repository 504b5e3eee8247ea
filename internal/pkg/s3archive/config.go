package s3archive

import (
	"strings"

	"github.com/plexora/meterpay/internal/pkg/env"
)

// Config holds the S3 audit archive configuration
type Config struct {
	Enabled         bool
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string
	KeyPrefix       string
}

// LoadConfig reads the archive configuration from the environment
func LoadConfig() *Config {
	return &Config{
		Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
		Region:          env.GetEnv("S3_ARCHIVE_REGION", "us-east-1"),
		Bucket:          env.GetEnv("S3_ARCHIVE_BUCKET", ""),
		AccessKeyID:     env.GetEnv("S3_ARCHIVE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_ARCHIVE_SECRET_ACCESS_KEY", ""),
		EndpointURL:     env.GetEnv("S3_ARCHIVE_ENDPOINT_URL", ""),
		KeyPrefix:       strings.Trim(env.GetEnv("S3_ARCHIVE_KEY_PREFIX", "settlements"), "/"),
	}
}

// IsEnabled reports whether archiving is configured and switched on
func (c *Config) IsEnabled() bool {
	return c.Enabled && c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
