package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// archivePartSize is the multipart part size for archive uploads, the S3
// minimum of 5 MiB. Monthly contract batches normally fit in a single part.
const archivePartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter for archive batches. Archive objects
// are immutable once written; a re-run overwrites the same monthly key with a
// superset of the rows.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = archivePartSize
			u.Concurrency = 3
		}),
		bucket: c.Bucket(),
	}
}

// Put uploads an archive object. The upload manager issues a single PutObject
// for payloads under one part and switches to a concurrent multipart upload
// for anything larger.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(w.bucket),
		Key:          aws.String(path),
		Body:         data,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("immutable, max-age=31536000"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}
