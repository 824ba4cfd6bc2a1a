package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/schollz/progressbar/v3"
)

const (
	defaultPartSize          = 5 * 1024 * 1024 // 5MB
	defaultConcurrentUploads = 5
)

// Uploader copies finished report files into an S3 bucket
type Uploader struct {
	bucket       string
	api          s3manageriface.UploaderAPI
	showProgress bool
}

// NewUploader creates an uploader for bucket using the given session
func NewUploader(sess client.ConfigProvider, bucket string) *Uploader {
	api := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = defaultPartSize
		u.Concurrency = defaultConcurrentUploads
	})
	return &Uploader{bucket: bucket, api: api, showProgress: true}
}

// NewUploaderWithAPI creates an uploader around an existing upload client
func NewUploaderWithAPI(api s3manageriface.UploaderAPI, bucket string) *Uploader {
	return &Uploader{bucket: bucket, api: api}
}

// Upload sends the file at localPath to the bucket under key, or under the file's
// base name when key is empty, and returns the s3:// location.
func (u *Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	if u.bucket == "" {
		return "", fmt.Errorf("S3 bucket not specified")
	}
	if key == "" {
		key = filepath.Base(localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	var body io.Reader = f
	if u.showProgress {
		body = &progressReader{
			reader: f,
			bar: progressbar.NewOptions64(
				info.Size(),
				progressbar.OptionSetDescription(fmt.Sprintf("Uploading %s...", key)),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(15),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			),
		}
	}

	_, err = u.api.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:               aws.String(u.bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, u.bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader io.Reader
	bar    *progressbar.ProgressBar
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if barErr := r.bar.Add(n); barErr != nil {
		fmt.Fprintf(os.Stderr, "Error updating progress bar: %v\n", barErr)
	}
	return n, err
}
