package download

import (
	"crypto/sha1" //nolint:gosec // vendor-declared digest
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/ytget/psn-updater/internal/model"
)

// EmbeddedDigestSize is the length of the digest trailer that packages
// not hashed as a whole carry at their end.
const EmbeddedDigestSize = 0x20

// digest hashes written bytes in order. When keep is non-zero the last keep
// bytes seen are held back and never hashed.
type digest struct {
	h    hash.Hash
	keep int
	tail []byte
}

func newDigest(entry model.PackageEntry) (*digest, error) {
	sum := normalizeHex(entry.Checksum)
	var h hash.Hash
	switch len(sum) {
	case sha1.Size * 2:
		h = sha1.New() //nolint:gosec // vendor-declared digest
	case sha256.Size * 2:
		h = sha256.New()
	default:
		return nil, fmt.Errorf("unsupported digest length %d", len(sum))
	}
	d := &digest{h: h}
	if !entry.HashWholeFile {
		d.keep = EmbeddedDigestSize
	}
	return d, nil
}

func (d *digest) Write(p []byte) (int, error) {
	if d.keep == 0 {
		return d.h.Write(p)
	}
	d.tail = append(d.tail, p...)
	if over := len(d.tail) - d.keep; over > 0 {
		d.h.Write(d.tail[:over])
		d.tail = append(d.tail[:0], d.tail[over:]...)
	}
	return len(p), nil
}

// Sum returns the lowercase hex digest.
func (d *digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Matches compares the digest with a declared hex value, ignoring case
// and surrounding space.
func (d *digest) Matches(declared string) bool {
	return d.Sum() == normalizeHex(declared)
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// VerifyFile hashes an existing file against entry's checksum. It returns
// the file size and whether the digest matched.
func VerifyFile(path string, entry model.PackageEntry) (int64, bool, error) {
	d, err := newDigest(entry)
	if err != nil {
		return 0, false, err
	}
	f, err := openFile(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	n, err := io.Copy(d, f)
	if err != nil {
		return n, false, err
	}
	return n, d.Matches(entry.Checksum), nil
}
