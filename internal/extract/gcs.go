package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// parseGCSURI splits a gs://bucket/path/to/object URI into bucket and object
// name.
func parseGCSURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	if trimmed == uri {
		return "", "", fmt.Errorf("parseGCSURI: not a gs:// URI: %q", uri)
	}
	bucket, object, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("parseGCSURI: malformed GCS URI: %q", uri)
	}
	return bucket, object, nil
}

// fetchFromGCS downloads the object behind a gs:// URI into memory. Assumes
// Application Default Credentials are configured.
func fetchFromGCS(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}

	return data, nil
}
