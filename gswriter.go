package idcmosaic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// CreateMaybeGoogleStorage opens path for writing, either as a local file
// (creating intermediate directories) or as a Google Storage object when the
// path has a gs:// prefix. The caller must Close() the writer for the object
// to be finalized.
func CreateMaybeGoogleStorage(path string, client *storage.Client) (io.WriteCloser, error) {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, fmt.Errorf("%s: no Google Storage client was configured", path)
		}

		// Detect the bucket and the path to the actual file
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}
		bucketName := pathParts[0]
		pathName := pathParts[1]

		handle := client.Bucket(bucketName).Object(pathName)

		return handle.NewWriter(context.Background()), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, pfx.Err(err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}
