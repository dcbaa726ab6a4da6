package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/platform"
	"github.com/ytget/psn-updater/internal/transport"
)

// DefaultChunkSize is the read size of one transfer step.
const DefaultChunkSize = 64 << 10

// Options configures an HTTPDownloader.
type Options struct {
	// HTTPClient performs the transfers. It should carry no overall timeout.
	// Default: transport.New with Timeout 0.
	HTTPClient *http.Client

	// ChunkSize is the size of each read. Default: 64 KiB
	ChunkSize int

	// SkipExisting returns an already present destination without a request
	// when its content matches the declared checksum.
	SkipExisting bool

	Logger *slog.Logger
}

// HTTPDownloader streams packages over HTTP and verifies them on the fly.
type HTTPDownloader struct {
	client       *http.Client
	chunkSize    int
	skipExisting bool
	log          *slog.Logger
}

// NewHTTPDownloader creates a new downloader
func NewHTTPDownloader(opts Options) *HTTPDownloader {
	if opts.HTTPClient == nil {
		topts := transport.DefaultOptions()
		topts.Timeout = 0
		opts.HTTPClient = transport.New(topts)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HTTPDownloader{
		client:       opts.HTTPClient,
		chunkSize:    opts.ChunkSize,
		skipExisting: opts.SkipExisting,
		log:          opts.Logger,
	}
}

// Download writes entry to destination, reporting cumulative progress to
// sink after every chunk. The destination is created or truncated and is
// kept on every failure, including checksum mismatches.
func (d *HTTPDownloader) Download(ctx context.Context, entry model.PackageEntry, destination string, sink ProgressSink) (*model.VerifiedFile, error) {
	if sink == nil {
		sink = nopSink{}
	}
	log := d.log.With("package", entry.ID(), "path", destination)

	if d.skipExisting && entry.HasChecksum() && platform.FileExists(destination) {
		if size, ok, err := VerifyFile(destination, entry); err == nil && ok {
			log.Info("package already downloaded", "size", size)
			sink.Transferred(size)
			return &model.VerifiedFile{Path: destination, Size: size, Verified: true}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrCancelled, Path: destination, Err: err}
	}

	var (
		sum    *digest
		sumErr error
	)
	if entry.HasChecksum() {
		sum, sumErr = newDigest(entry)
	}

	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(destination)); err != nil {
		return nil, &Error{Kind: ErrIO, Path: destination, Err: err}
	}
	f, err := os.Create(destination)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Path: destination, Err: err}
	}
	closed := false
	defer func() {
		if !closed {
			f.Close()
		}
	}()

	log.Info("download started", "url", entry.URL, "size", entry.Size)

	var total int64
	fail := func(kind error, err error) (*model.VerifiedFile, error) {
		if ctx.Err() != nil {
			kind = ErrCancelled
		}
		return nil, &Error{Kind: kind, Path: destination, BytesTransferred: total, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return fail(ErrNetwork, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fail(ErrNetwork, err)
	}
	defer resp.Body.Close()
	if err := transport.CheckStatus(resp); err != nil {
		return fail(ErrNetwork, err)
	}

	buf := make([]byte, d.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return fail(ErrCancelled, err)
		}
		n, rerr := readChunk(resp.Body, buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fail(ErrIO, err)
			}
			if sum != nil {
				sum.Write(buf[:n])
			}
			total += int64(n)
			sink.Transferred(total)
			log.Debug("chunk written", "bytes", total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			log.Warn("transfer interrupted", "bytes", total, "error", rerr)
			return fail(ErrNetwork, rerr)
		}
	}

	closed = true
	if err := f.Close(); err != nil {
		return fail(ErrIO, err)
	}

	short := entry.Size > 0 && total < entry.Size
	if short {
		log.Warn("transfer shorter than declared size", "received", total, "declared", entry.Size)
	}

	if !entry.HasChecksum() {
		log.Info("download finished without checksum", "bytes", total)
		return &model.VerifiedFile{Path: destination, Size: total}, nil
	}

	sink.Verifying()
	if sumErr != nil {
		return nil, &Error{Kind: ErrChecksumMismatch, Path: destination, BytesTransferred: total,
			Expected: entry.Checksum, Short: short, Err: sumErr}
	}
	if !sum.Matches(entry.Checksum) {
		log.Warn("checksum mismatch", "expected", entry.Checksum, "actual", sum.Sum())
		return nil, &Error{Kind: ErrChecksumMismatch, Path: destination, BytesTransferred: total,
			Expected: normalizeHex(entry.Checksum), Actual: sum.Sum(), Short: short}
	}

	log.Info("checksum verified", "bytes", total)
	return &model.VerifiedFile{Path: destination, Size: total, Verified: true}, nil
}

// readChunk fills buf from r. Only a clean io.EOF ends the stream; a body
// cut short before its Content-Length yields io.ErrUnexpectedEOF instead.
func readChunk(r io.Reader, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
