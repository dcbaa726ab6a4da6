package updates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ytget/psn-updater/internal/manifest"
	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/query"
	"github.com/ytget/psn-updater/internal/titleid"
	"github.com/ytget/psn-updater/internal/updatexml"
)

// ErrManifest wraps failures to fetch or parse a part manifest.
var ErrManifest = errors.New("updates: part manifest unavailable")

// Service looks up the update packages of a title.
type Service struct {
	client *query.Client
	parser *updatexml.Parser
	log    *slog.Logger
}

// NewService creates a lookup service on top of client
func NewService(client *query.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		parser: &updatexml.Parser{Logger: logger},
		log:    logger,
	}
}

// Lookup validates raw and fetches its update information. Raw input is
// normalized first, so "bcus-98148" is accepted.
func (s *Service) Lookup(ctx context.Context, raw string) (*model.UpdateInfo, error) {
	id, err := titleid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, id)
}

// Fetch queries and parses the update document of id and expands part
// manifests. A title without packages returns an info with HasUpdates false.
func (s *Service) Fetch(ctx context.Context, id titleid.TitleID) (*model.UpdateInfo, error) {
	body, err := s.client.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	info, err := s.parser.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	if info.TitleID == "" {
		info.TitleID = id.String()
	}
	info.Platform = string(id.Platform())

	if err := s.expandManifests(ctx, id, info); err != nil {
		return nil, err
	}

	s.log.Info("update lookup finished",
		"title_id", info.TitleID,
		"title", info.Title(),
		"packages", len(info.Packages),
		"size", info.TotalSize())
	return info, nil
}

// Entries is Fetch reduced to the package entries.
func (s *Service) Entries(ctx context.Context, id titleid.TitleID) ([]model.PackageEntry, error) {
	info, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return info.Packages, nil
}

// expandManifests replaces every package that references a part manifest
// with the parts it lists, keeping document order. On PS3 titles only
// manifest-only references are expanded.
func (s *Service) expandManifests(ctx context.Context, id titleid.TitleID, info *model.UpdateInfo) error {
	ordered := inDocumentOrder(info.Packages, info.Manifests)
	packages := make([]model.PackageEntry, 0, len(ordered))
	for _, p := range ordered {
		expand := p.URL == "" || (id.Platform() == titleid.PlatformPS4 && p.ManifestURL != "")
		if !expand {
			packages = append(packages, p)
			continue
		}

		body, err := s.client.FetchManifest(ctx, p.ManifestURL)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrManifest, p.ManifestURL, err)
		}
		m, err := manifest.Parse(body)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrManifest, p.ManifestURL, err)
		}
		parts, err := m.Expand(p, s.log)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrManifest, p.ManifestURL, err)
		}
		s.log.Debug("expanded part manifest", "version", p.Version, "parts", len(parts))
		packages = append(packages, parts...)
	}

	info.Packages = packages
	info.Manifests = info.Manifests[:0]
	return nil
}

// inDocumentOrder merges two lists that are each in document order.
func inDocumentOrder(packages, manifests []model.PackageEntry) []model.PackageEntry {
	out := make([]model.PackageEntry, 0, len(packages)+len(manifests))
	i, j := 0, 0
	for i < len(packages) && j < len(manifests) {
		if manifests[j].Index < packages[i].Index {
			out = append(out, manifests[j])
			j++
			continue
		}
		out = append(out, packages[i])
		i++
	}
	out = append(out, packages[i:]...)
	return append(out, manifests[j:]...)
}

// IsUnknownTitle reports whether err is the vendor's answer for a title id
// it does not know: a 404 or a NoSuchKey error document.
func IsUnknownTitle(err error) bool {
	if query.StatusCode(err) == http.StatusNotFound {
		return true
	}
	var ve *updatexml.VendorError
	return errors.As(err, &ve) && ve.Code == updatexml.CodeNoSuchKey
}
