// Package archive mirrors verified update packages to object storage.
// Any gocloud bucket URL is accepted: file://, mem://, s3:// and gs://.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/ytget/psn-updater/internal/model"
)

// Metadata keys stored with every object
const (
	MetaVersion  = "version"
	MetaChecksum = "checksum"
	MetaVerified = "verified"
	MetaTitleID  = "title_id"

	contentType = "application/octet-stream"
)

var ErrUnverified = errors.New("archive: refusing to store an unverified package")

// Archive stores packages below a key prefix of a bucket.
type Archive struct {
	bucket *blob.Bucket
	prefix string
	log    *slog.Logger
}

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL, prefix string, logger *slog.Logger) (*Archive, error) {
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return New(bkt, prefix, logger), nil
}

// New wraps an already opened bucket.
func New(bucket *blob.Bucket, prefix string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    logger,
	}
}

// Key returns the object key of a package file: <prefix>/<TITLEID>/<name>.
func (a *Archive) Key(titleID, fileName string) string {
	return path.Join(a.prefix, titleID, path.Base(filepath.ToSlash(fileName)))
}

// Store uploads a verified file. An object with the same size and checksum
// already present is left untouched and reported as not written.
func (a *Archive) Store(ctx context.Context, file model.VerifiedFile, entry model.PackageEntry, titleID string) (string, bool, error) {
	if !file.Verified {
		return "", false, fmt.Errorf("%w: %s", ErrUnverified, file.Path)
	}

	key := a.Key(titleID, file.Path)
	checksum := strings.ToLower(strings.TrimSpace(entry.Checksum))

	attrs, err := a.bucket.Attributes(ctx, key)
	switch {
	case err == nil:
		if attrs.Size == file.Size && attrs.Metadata[MetaChecksum] == checksum {
			a.log.Info("package already archived", "key", key)
			return key, false, nil
		}
	case gcerrors.Code(err) != gcerrors.NotFound:
		return "", false, fmt.Errorf("stat %s: %w", key, err)
	}

	in, err := os.Open(file.Path)
	if err != nil {
		return "", false, err
	}
	defer in.Close()

	w, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			MetaVersion:  entry.Version,
			MetaChecksum: checksum,
			MetaVerified: strconv.FormatBool(file.Verified),
			MetaTitleID:  titleID,
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("create writer for %s: %w", key, err)
	}

	n, err := io.Copy(w, in)
	if err != nil {
		w.Close()
		return "", false, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", false, fmt.Errorf("upload %s: %w", key, err)
	}

	a.log.Info("package archived", "key", key, "bytes", n)
	return key, true, nil
}

// Close closes the underlying bucket.
func (a *Archive) Close() error {
	return a.bucket.Close()
}
