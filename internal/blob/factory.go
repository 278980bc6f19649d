package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	// Root is the directory of the fs driver.
	Root string
	S3   S3Config
}

// ConfigFromEnv reads the backend from the environment:
//
//	RNDHARNESS_BLOB_DRIVER: fs|s3|memory (default fs)
//	RNDHARNESS_BLOB_FS_ROOT: fs root (default ./artifacts)
//	RNDHARNESS_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PATH_STYLE: s3 settings
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(os.Getenv("RNDHARNESS_BLOB_DRIVER")),
		Root:   os.Getenv("RNDHARNESS_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:    os.Getenv("RNDHARNESS_BLOB_S3_BUCKET"),
			Region:    os.Getenv("RNDHARNESS_BLOB_S3_REGION"),
			Endpoint:  os.Getenv("RNDHARNESS_BLOB_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("RNDHARNESS_BLOB_S3_PATH_STYLE"), "true"),
		},
	}
}

// Open returns the Store for cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}
