// Package objectstore uploads and deletes payment-proof files in a blob bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/mmynk/splitevent/internal/apperr"
	"github.com/mmynk/splitevent/internal/models"
	"github.com/mmynk/splitevent/internal/slug"
)

// Folders proofs are stored under.
const (
	FolderExpenses    = "expenses"
	FolderObligations = "expense_participant"
)

const (
	// MaxFileSize is the largest accepted proof, in bytes.
	MaxFileSize = 2 << 20
	// MaxFiles is the largest number of proofs accepted per request.
	MaxFiles = 10

	cacheControl = "public, max-age=31536000"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// Gateway stores proof files and returns their public URLs.
type Gateway interface {
	Upload(ctx context.Context, folder string, file models.File) (string, error)
	Delete(ctx context.Context, url string) error
}

// Ensure BlobGateway implements Gateway
var _ Gateway = (*BlobGateway)(nil)

// BlobGateway implements Gateway on a gocloud.dev bucket. Every bucket call
// goes through a circuit breaker so a failing backend is not hammered.
type BlobGateway struct {
	bucket  *blob.Bucket
	baseURL string
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// Open opens the bucket at bucketURL (mem://, file://, gs://).
// Object URLs are publicBaseURL + "/" + key; when publicBaseURL is empty it
// is derived from the bucket URL.
func Open(ctx context.Context, bucketURL, publicBaseURL string) (*BlobGateway, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = defaultBaseURL(bucketURL)
	}
	return New(bucket, publicBaseURL), nil
}

// New wraps an open bucket.
func New(bucket *blob.Bucket, publicBaseURL string) *BlobGateway {
	return &BlobGateway{
		bucket:  bucket,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "objectstore",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
		now: time.Now,
	}
}

func defaultBaseURL(bucketURL string) string {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return strings.TrimSuffix(bucketURL, "/")
	}
	switch u.Scheme {
	case "gs":
		return "https://storage.googleapis.com/" + u.Host
	case "mem":
		return "mem://bucket"
	}
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/")
}

// Close closes the bucket.
func (g *BlobGateway) Close() error {
	return g.bucket.Close()
}

// Upload writes file under folder as <random6>-<unixms>.<ext>.
func (g *BlobGateway) Upload(ctx context.Context, folder string, file models.File) (string, error) {
	slog.Info("Uploading file", "name", file.Name, "folder", folder, "size", len(file.Data))

	ext := strings.ToLower(path.Ext(file.Name))
	prefix, err := slug.RandomString(6)
	if err != nil {
		return "", apperr.Storage("failed to name file", err)
	}
	key := fmt.Sprintf("%s/%s-%d%s", folder, prefix, g.now().UnixMilli(), ext)

	contentType := file.ContentType
	if contentType == "" {
		contentType = contentTypes[ext]
	}

	_, err = g.breaker.Execute(func() (interface{}, error) {
		w, err := g.bucket.NewWriter(ctx, key, &blob.WriterOptions{
			ContentType:  contentType,
			CacheControl: cacheControl,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(file.Data); err != nil {
			w.Close()
			return nil, err
		}
		return nil, w.Close()
	})
	if err != nil {
		slog.Error("Failed to upload file", "name", file.Name, "key", key, "error", err)
		return "", apperr.Storage("failed to upload file", err)
	}

	return g.baseURL + "/" + key, nil
}

// Delete removes the object behind url. Missing objects are not an error.
func (g *BlobGateway) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, g.baseURL+"/")
	if !ok || key == "" {
		return apperr.Storage("failed to delete file", fmt.Errorf("url %q is outside bucket %q", url, g.baseURL))
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		err := g.bucket.Delete(ctx, key)
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		slog.Error("Failed to delete file", "key", key, "error", err)
		return apperr.Storage("failed to delete file", err)
	}
	return nil
}

// ValidateFiles checks the count, extension and size of every file before
// anything is uploaded.
func ValidateFiles(files []models.File) error {
	if len(files) > MaxFiles {
		return apperr.Validation("Too many files (max %d)", MaxFiles)
	}
	for _, f := range files {
		if _, ok := contentTypes[strings.ToLower(path.Ext(f.Name))]; !ok {
			return apperr.Validation("Invalid file type")
		}
		if len(f.Data) == 0 {
			return apperr.Validation("File %s is empty", f.Name)
		}
		if len(f.Data) > MaxFileSize {
			return apperr.Validation("File too large (max 2MB)")
		}
	}
	return nil
}

// IsUnavailable reports whether err was caused by an open circuit breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
