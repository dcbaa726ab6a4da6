package updatexml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ytget/psn-updater/internal/model"
)

// Element and attribute names
const (
	ElemTitlePatch  = "titlepatch"
	ElemTag         = "tag"
	ElemPackage     = "package"
	ElemError       = "Error"
	ElemCode        = "Code"
	ElemMessage     = "Message"
	TitleElemPrefix = "TITLE"

	AttrTitleID     = "titleid"
	AttrName        = "name"
	AttrVersion     = "version"
	AttrSize        = "size"
	AttrSHA1Sum     = "sha1sum"
	AttrURL         = "url"
	AttrManifestURL = "manifest_url"
)

// Parser parses update documents.
type Parser struct {
	Logger *slog.Logger
}

// Parse returns the downloadable entries of body in document order.
func Parse(body []byte) ([]model.PackageEntry, error) {
	return (&Parser{}).Parse(body)
}

// ParseDocument returns the full update document of body.
func ParseDocument(body []byte) (*model.UpdateInfo, error) {
	return (&Parser{}).ParseDocument(body)
}

// Parse returns the downloadable entries of body in document order.
// A valid document without packages yields an empty, non-nil slice.
func (p *Parser) Parse(body []byte) ([]model.PackageEntry, error) {
	info, err := p.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return info.Packages, nil
}

// ParseDocument walks the document once and collects title metadata,
// downloadable packages and manifest-only packages.
func (p *Parser) ParseDocument(body []byte) (*model.UpdateInfo, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	st := &parseState{
		info: &model.UpdateInfo{
			Packages:  make([]model.PackageEntry, 0),
			Manifests: make([]model.PackageEntry, 0),
		},
		log: log,
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = true

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("%v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			st.start(t)
		case xml.EndElement:
			st.end(t)
		case xml.CharData:
			if st.capture != nil {
				st.capture.Write(t)
			}
		}
	}

	if !st.sawRoot {
		return nil, malformed("no root element")
	}
	if st.vendorErr != nil {
		if st.vendorErr.Code == "" {
			log.Warn("error element without a code")
			return nil, malformed("error document without code")
		}
		return nil, st.vendorErr
	}

	return st.info, nil
}

type parseState struct {
	info    *model.UpdateInfo
	log     *slog.Logger
	depth   int
	sawRoot bool

	// current package element, nil outside one
	pkg      *pendingPackage
	pkgDepth int

	inError   bool
	vendorErr *VendorError

	capture      *strings.Builder
	captureField string
	captureDepth int

	index int // package element ordinal, for diagnostics
}

type pendingPackage struct {
	fields map[string]string
}

func (s *parseState) start(e xml.StartElement) {
	s.depth++
	if s.depth == 1 {
		s.sawRoot = true
	}

	name := e.Name.Local
	switch {
	case name == ElemTitlePatch:
		s.info.TitleID = attr(e, AttrTitleID)
	case name == ElemTag:
		s.info.TagName = attr(e, AttrName)
	case name == ElemPackage && s.pkg == nil:
		s.index++
		s.pkg = &pendingPackage{fields: make(map[string]string)}
		s.pkgDepth = s.depth
		for _, a := range e.Attr {
			s.pkg.fields[a.Name.Local] = a.Value
		}
	case name == ElemError:
		s.inError = true
		if s.vendorErr == nil {
			s.vendorErr = &VendorError{}
		}
	case (name == ElemCode || name == ElemMessage) && s.inError:
		s.beginCapture(name)
	case strings.HasPrefix(name, TitleElemPrefix):
		s.beginCapture(name)
	case s.pkg != nil && s.depth == s.pkgDepth+1 && isPackageField(name):
		if _, set := s.pkg.fields[name]; !set {
			s.beginCapture(name)
		}
	}
}

func (s *parseState) end(e xml.EndElement) {
	if s.capture != nil && s.depth == s.captureDepth {
		s.finishCapture()
	}
	if s.pkg != nil && s.depth == s.pkgDepth && e.Name.Local == ElemPackage {
		s.finishPackage()
	}
	if e.Name.Local == ElemError {
		s.inError = false
	}
	s.depth--
}

func (s *parseState) beginCapture(field string) {
	s.capture = &strings.Builder{}
	s.captureField = field
	s.captureDepth = s.depth
}

func (s *parseState) finishCapture() {
	text := s.capture.String()
	field := s.captureField
	s.capture = nil
	s.captureField = ""

	switch {
	case s.vendorErr != nil && field == ElemCode:
		s.vendorErr.Code = strings.TrimSpace(text)
	case s.vendorErr != nil && field == ElemMessage:
		s.vendorErr.Message = strings.TrimSpace(text)
	case strings.HasPrefix(field, TitleElemPrefix):
		// Some titles carry raw newlines (e.g. BCUS98233).
		title := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
		if title != "" {
			s.info.Titles = append(s.info.Titles, title)
		}
	case s.pkg != nil:
		s.pkg.fields[field] = strings.TrimSpace(text)
	}
}

func (s *parseState) finishPackage() {
	f := s.pkg.fields
	s.pkg = nil

	entry := model.PackageEntry{
		Version:  strings.TrimSpace(f[AttrVersion]),
		URL:      strings.TrimSpace(f[AttrURL]),
		Checksum: strings.TrimSpace(f[AttrSHA1Sum]),
		Index:    s.index,
	}
	if raw := strings.TrimSpace(f[AttrSize]); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size < 0 {
			s.log.Debug("ignoring unparsable package size", "index", s.index, "size", raw)
		} else {
			entry.Size = size
		}
	}

	if manifestURL := strings.TrimSpace(f[AttrManifestURL]); model.IsDownloadURL(manifestURL) {
		entry.ManifestURL = manifestURL
	}

	if model.IsDownloadURL(entry.URL) {
		s.info.Packages = append(s.info.Packages, entry)
		return
	}

	if entry.ManifestURL != "" {
		entry.URL = ""
		s.info.Manifests = append(s.info.Manifests, entry)
		return
	}

	s.log.Warn("skipping package without usable url",
		"index", s.index,
		"version", entry.Version,
		"url", entry.URL,
	)
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func isPackageField(name string) bool {
	switch name {
	case AttrVersion, AttrSize, AttrSHA1Sum, AttrURL, AttrManifestURL:
		return true
	}
	return false
}
