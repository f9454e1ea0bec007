package connectors

import (
	"context"
	"io"
	"strings"

	"suppliers/internal"
)

// TabularSink replaces the destination table with rows in one step: after a
// successful call the table holds exactly rows, after a failed one it is
// unchanged.
type TabularSink interface {
	ReplaceRows(ctx context.Context, rows []internal.TabularRow) error
}

type ObjectStore interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Upload(ctx context.Context, bucket, object string, src io.Reader) error
}

const objectScheme = "gs://"

// ParseObjectURI splits gs://bucket/path/to/object. ok is false for anything
// that is not an object URI with both parts set.
func ParseObjectURI(uri string) (bucket, object string, ok bool) {
	if !strings.HasPrefix(uri, objectScheme) {
		return "", "", false
	}
	bucket, object, found := strings.Cut(strings.TrimPrefix(uri, objectScheme), "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

func IsObjectURI(uri string) bool {
	return strings.HasPrefix(uri, objectScheme)
}
