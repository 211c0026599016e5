package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go-dispatch-ws/internal/service"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectPutter is the slice of *minio.Client the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver uploads the reconciliation workbook of every delivered dispatch.
type Archiver struct {
	client objectPutter
	bucket string
}

// Verify interface compliance
var _ service.Archiver = (*Archiver)(nil)

// NewArchiver connects to MinIO and makes sure the bucket exists. It returns nil,
// nil when no endpoint is configured.
func NewArchiver(ctx context.Context, cfg MinIOConfig) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

func (a *Archiver) Archive(ctx context.Context, sum *service.ReconciliationSummary) error {
	data, name, err := Render(sum)
	if err != nil {
		return err
	}

	object := ObjectName(sum, name)
	_, err = a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType,
		UserMetadata: map[string]string{
			"dispatch-id": sum.DispatchID.String(),
			"number":      sum.Number,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

// ObjectName groups archives by destination store.
func ObjectName(sum *service.ReconciliationSummary, filename string) string {
	return fmt.Sprintf("reconciliations/%s/%s", sum.DestinationStoreID, filename)
}
