package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// DefaultUploadTimeout bounds a single upload.
const DefaultUploadTimeout = 2 * time.Minute

// Uploader stores uploaded images in one GCS bucket. It assumes Application
// Default Credentials are configured (gcloud auth application-default login).
type Uploader struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// New creates an uploader over a shared storage client.
func New(client *storage.Client, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: "uploads", timeout: DefaultUploadTimeout}
}

// UploadFile uploads a local file under a fresh asset id scoped to owner.
func (u *Uploader) UploadFile(ctx context.Context, owner, filePath, contentType string) (domain.Asset, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	assetID := uuid.New().String()
	objectName := ObjectName(u.prefix, owner, assetID, path.Ext(filePath))

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	w := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"asset_id": assetID, "owner": owner}

	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return domain.Asset{}, fmt.Errorf("copy file to GCS writer: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return domain.Asset{}, fmt.Errorf("finalize upload: %w", err)
	}

	return domain.Asset{
		ID:          assetID,
		URL:         PublicURL(u.bucket, objectName),
		URI:         fmt.Sprintf("gs://%s/%s", u.bucket, objectName),
		ContentType: contentType,
		Size:        n,
	}, nil
}

// ObjectName builds the object path for an asset.
// e.g. ("uploads", "user_1", "abc", ".jpg") → "uploads/user_1/abc.jpg"
func ObjectName(prefix, owner, assetID, ext string) string {
	owner = strings.NewReplacer("/", "_", "..", "_").Replace(owner)
	return path.Join(prefix, owner, assetID+strings.ToLower(ext))
}

// PublicURL returns the durable HTTPS URL of an object.
func PublicURL(bucket, objectName string) string {
	return (&url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + bucket + "/" + objectName,
	}).String()
}

// ParseGCSURI splits gs://bucket/path into bucket and object path.
func ParseGCSURI(gcsURI string) (string, string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.jpg" → "file.jpg"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
