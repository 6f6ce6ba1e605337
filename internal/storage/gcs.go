package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket under a folder.
type GCS struct {
	client *storage.Client
	bucket string
	folder string
}

// NewGCSClient uses credentialsJSON when given, otherwise Application
// Default Credentials.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

func NewGCS(client *storage.Client, bucket, folder string) *GCS {
	return &GCS{client: client, bucket: bucket, folder: strings.Trim(folder, "/")}
}

func (g *GCS) objectName(publicID, format string) string {
	name := publicID
	if format != "" {
		name += "." + format
	}
	if g.folder == "" {
		return name
	}
	return path.Join(g.folder, name)
}

func (g *GCS) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	if opts.PublicID == "" {
		return nil, errors.New("public id is required")
	}
	object := g.objectName(opts.PublicID, opts.Format)

	wc := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = opts.ContentType
	wc.Metadata = map[string]string{"resource_type": opts.ResourceType}

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("failed to upload %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer for %s: %w", object, err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, object)
	return &UploadResult{
		PublicID:     object,
		URL:          url,
		SecureURL:    url,
		Bytes:        int64(len(data)),
		ResourceType: opts.ResourceType,
		Format:       opts.Format,
	}, nil
}

// Destroy removes a stored object by the public id Upload returned.
// A missing object is not an error.
func (g *GCS) Destroy(ctx context.Context, publicID, _ string) error {
	err := g.client.Bucket(g.bucket).Object(publicID).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
