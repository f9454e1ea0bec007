package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"suppliers/internal/connectors"
)

// OpenInput opens a local path or a gs://bucket/object location.
func OpenInput(ctx context.Context, store connectors.ObjectStore, location string) (io.ReadCloser, error) {
	if connectors.IsObjectURI(location) {
		bucket, object, ok := connectors.ParseObjectURI(location)
		if !ok {
			return nil, fmt.Errorf("invalid object location: %s", location)
		}
		if store == nil {
			return nil, fmt.Errorf("no object store configured for %s", location)
		}
		return store.Open(ctx, bucket, object)
	}
	return os.Open(location)
}

// PublishOutput copies a locally written file to its final location when
// that location is an object URI.
func PublishOutput(ctx context.Context, store connectors.ObjectStore, localPath, location string) error {
	if !connectors.IsObjectURI(location) {
		return nil
	}
	bucket, object, ok := connectors.ParseObjectURI(location)
	if !ok {
		return fmt.Errorf("invalid object location: %s", location)
	}
	if store == nil {
		return fmt.Errorf("no object store configured for %s", location)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.Upload(ctx, bucket, object, f)
}

// isXLSX reports whether an auxiliary feed location names a workbook.
func isXLSX(location string) bool {
	return strings.EqualFold(filepath.Ext(location), ".xlsx")
}
