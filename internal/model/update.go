package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// PackageEntry describes one downloadable update package as declared by the
// vendor. Entries are produced by parsing and are not mutated afterwards.
type PackageEntry struct {
	Version  string
	Size     int64 // advisory, used for progress math only
	URL      string
	Checksum string // hex digest, empty when the vendor omitted it

	// HashWholeFile is false for packages whose last 0x20 bytes carry an
	// embedded digest that is excluded from Checksum.
	HashWholeFile bool

	// ManifestURL points at a part manifest (PS4). Offset and PartNumber are
	// set on entries expanded from such a manifest.
	ManifestURL string
	Offset      int64
	PartNumber  int // 1-based, 0 when the package is not split

	// Index is the 1-based position of the package element in the update
	// document. Parts expanded from a manifest share their parent's Index.
	Index int
}

// ID returns a display identifier: the version, plus the part number for
// split packages.
func (p PackageEntry) ID() string {
	if p.PartNumber > 0 {
		return fmt.Sprintf("%s - Part %d", p.Version, p.PartNumber)
	}
	return p.Version
}

// HasChecksum reports whether the vendor declared a digest for the entry.
func (p PackageEntry) HasChecksum() bool {
	return strings.TrimSpace(p.Checksum) != ""
}

// IsPart reports whether the entry is one piece of a split package.
func (p PackageEntry) IsPart() bool {
	return p.PartNumber > 0
}

// FileName returns the last path segment of the entry URL, or "" when the
// URL has none.
func (p PackageEntry) FileName() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// IsDownloadURL reports whether raw is an absolute http(s) URL with a host.
func IsDownloadURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UpdateInfo is the structured result of one update query.
type UpdateInfo struct {
	TitleID  string
	TagName  string
	Platform string
	Titles   []string

	// Packages holds the downloadable entries in document order.
	Packages []PackageEntry

	// Manifests holds entries that only reference a part manifest and still
	// need to be expanded into Packages.
	Manifests []PackageEntry
}

// Title returns the first declared title name, or "" if there is none.
func (u *UpdateInfo) Title() string {
	if len(u.Titles) == 0 {
		return ""
	}
	return u.Titles[0]
}

// HasUpdates reports whether at least one downloadable package was found.
func (u *UpdateInfo) HasUpdates() bool {
	return len(u.Packages) > 0
}

// TotalSize returns the sum of the declared package sizes.
func (u *UpdateInfo) TotalSize() int64 {
	var total int64
	for _, p := range u.Packages {
		total += p.Size
	}
	return total
}

// AllParts reports whether every package is a piece of a split package.
func (u *UpdateInfo) AllParts() bool {
	if len(u.Packages) == 0 {
		return false
	}
	for _, p := range u.Packages {
		if !p.IsPart() {
			return false
		}
	}
	return true
}
