// Package manifest parses the JSON part manifests that split PS4 update
// packages into separately downloadable pieces.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ytget/psn-updater/internal/model"
)

var (
	ErrMalformed = errors.New("manifest: malformed document")
	ErrNoParts   = errors.New("manifest: no parts listed")
)

// Piece is one downloadable part of a split package.
type Piece struct {
	URL        string `json:"url"`
	FileOffset int64  `json:"fileOffset"`
	FileSize   int64  `json:"fileSize"`
	HashValue  string `json:"hashValue"`
}

// Manifest describes how a package is split.
type Manifest struct {
	OriginalFileSize   int64   `json:"originalFileSize"`
	PackageDigest      string  `json:"packageDigest"`
	NumberOfSplitFiles int     `json:"numberOfSplitFiles"`
	Pieces             []Piece `json:"pieces"`
}

// Parse decodes a manifest document.
func Parse(body []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(m.Pieces) == 0 {
		return nil, ErrNoParts
	}
	return &m, nil
}

// Expand turns the pieces of m into package entries inheriting the version
// and document position of parent. Each piece is verified against its own
// whole-file digest. Pieces without a usable URL are skipped; ErrNoParts is
// returned when none remain. A nil log uses slog.Default.
func (m *Manifest) Expand(parent model.PackageEntry, log *slog.Logger) ([]model.PackageEntry, error) {
	if log == nil {
		log = slog.Default()
	}
	entries := make([]model.PackageEntry, 0, len(m.Pieces))
	for i, piece := range m.Pieces {
		// Part numbers follow the manifest so they keep matching the
		// _N suffix of the piece file names.
		part := 0
		if m.NumberOfSplitFiles > 1 {
			part = i + 1
		}
		url := strings.TrimSpace(piece.URL)
		if !model.IsDownloadURL(url) {
			log.Warn("skipping manifest piece without usable url",
				"version", parent.Version,
				"piece", i+1,
				"url", piece.URL,
			)
			continue
		}
		entries = append(entries, model.PackageEntry{
			Version:       parent.Version,
			Size:          piece.FileSize,
			URL:           url,
			Checksum:      piece.HashValue,
			HashWholeFile: true,
			Offset:        piece.FileOffset,
			PartNumber:    part,
			Index:         parent.Index,
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoParts
	}
	return entries, nil
}
