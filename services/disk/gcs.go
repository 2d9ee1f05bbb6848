package disksvc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/masomo-lms/core/attachment"
)

// GCSDisk stores files in a Google Cloud Storage bucket.
type GCSDisk struct {
	client  *storage.Client
	bucket  string
	baseURL string // public base URL (CDN); defaults to https://storage.googleapis.com/<bucket>
}

var _ attachment.Disk = (*GCSDisk)(nil)

func NewGCSDisk(ctx context.Context, bucket, baseURL string, opts ...option.ClientOption) (*GCSDisk, error) {
	if bucket == "" {
		return nil, errors.New("missing GCS bucket name")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		baseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucket)
	}
	return &GCSDisk{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *GCSDisk) Put(ctx context.Context, path string, r io.Reader, size int64, mimeType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := d.client.Bucket(d.bucket).Object(path).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing data to GCS")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing GCS writer")
	}
	return nil
}

func (d *GCSDisk) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := d.client.Bucket(d.bucket).Object(path).Delete(ctx); err != nil {
		return errors.Wrap(err, "deleting GCS object")
	}
	return nil
}

func (d *GCSDisk) URL(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return d.baseURL + "/" + strings.Join(segs, "/")
}

func (d *GCSDisk) Close() error {
	return d.client.Close()
}
