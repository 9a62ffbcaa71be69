package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CurveStore persists exported frequency response curves
type CurveStore interface {
	PutCurve(ctx context.Context, key string, body []byte) error
	GetCurve(ctx context.Context, key string) ([]byte, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteCurve(ctx context.Context, key string) error
}

// Config holds configuration shared by the S3 and MinIO stores
type Config struct {
	Backend   string // "s3" or "minio"
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	URLExpiry time.Duration
}

const (
	BackendS3    = "s3"
	BackendMinio = "minio"

	curveContentType = "application/json"
	defaultURLExpiry = 24 * time.Hour
)

// New returns the store selected by cfg.Backend
func New(cfg Config) (CurveStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendS3:
		return NewS3Store(cfg)
	case BackendMinio:
		return NewMinioStore(context.Background(), cfg)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// CurveKey is the object key of the exported curve of a response run
func CurveKey(runID string) string {
	return "responses/" + runID + ".json"
}

func (c Config) expiry() time.Duration {
	if c.URLExpiry > 0 {
		return c.URLExpiry
	}
	return defaultURLExpiry
}
