package updatexml

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validPackage(i int) string {
	return fmt.Sprintf(`<package version="01.%02d" size="%d" sha1sum="%040d" url="http://b0.ww.np.dl.playstation.net/tppkg/np/BCUS98148/p%d.pkg"/>`, i, 1000+i, i, i)
}

func missingURLPackage(i int) string {
	return fmt.Sprintf(`<package version="99.%02d" size="1" sha1sum="abc"/>`, i)
}

func wrap(packages string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?><titlepatch titleid="BCUS98148"><tag name="BCUS98148_T3" popup="true">` +
		packages + `</tag></titlepatch>`)
}

func TestParse_KeepsDocumentOrderAndSkipsMissingURL(t *testing.T) {
	const valid = 4
	const missing = 2

	// Place the invalid elements at every possible position.
	for pos := 0; pos <= valid; pos++ {
		var b strings.Builder
		for i := 0; i < valid; i++ {
			if i == pos {
				for m := 0; m < missing; m++ {
					b.WriteString(missingURLPackage(m))
				}
			}
			b.WriteString(validPackage(i))
		}
		if pos == valid {
			for m := 0; m < missing; m++ {
				b.WriteString(missingURLPackage(m))
			}
		}

		entries, err := Parse(wrap(b.String()))
		if err != nil {
			t.Fatalf("pos=%d: Parse: %v", pos, err)
		}
		if len(entries) != valid {
			t.Fatalf("pos=%d: expected %d entries, got %d", pos, valid, len(entries))
		}
		for i, e := range entries {
			if e.Version != fmt.Sprintf("01.%02d", i) {
				t.Errorf("pos=%d: entry %d version=%q", pos, i, e.Version)
			}
			if e.Size != int64(1000+i) {
				t.Errorf("pos=%d: entry %d size=%d", pos, i, e.Size)
			}
			if e.Checksum != fmt.Sprintf("%040d", i) {
				t.Errorf("pos=%d: entry %d checksum=%q", pos, i, e.Checksum)
			}
			if e.HashWholeFile {
				t.Errorf("pos=%d: entry %d should not hash the whole file", pos, i)
			}
		}
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	docs := []string{
		`<titlepatch titleid="BLUS41044"/>`,
		`<?xml version="1.0"?><titlepatch titleid="BLUS41044"><tag name="x"></tag></titlepatch>`,
	}

	for _, doc := range docs {
		entries, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q): %v", doc, err)
		}
		if entries == nil || len(entries) != 0 {
			t.Errorf("Parse(%q) expected empty non-nil slice, got %v", doc, entries)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	docs := []string{
		``,
		`not xml at all`,
		`<titlepatch titleid="X"><tag name="x">`,
		`<titlepatch><package url="http://a/b.pkg"></titlepatch>`,
		`<titlepatch titleid="X></titlepatch>`,
	}

	for _, doc := range docs {
		_, err := Parse([]byte(doc))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) expected ErrMalformed, got %v", doc, err)
		}
	}
}

func TestParseDocument_VendorError(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

	_, err := ParseDocument([]byte(doc))
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("Expected *VendorError, got %v", err)
	}
	if vendorErr.Code != CodeNoSuchKey {
		t.Errorf("Expected code %s, got %q", CodeNoSuchKey, vendorErr.Code)
	}
	if vendorErr.Message == "" {
		t.Error("Expected message to be captured")
	}

	if _, err := ParseDocument([]byte(`<Error></Error>`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed for code-less error, got %v", err)
	}
}

func TestParseDocument_Metadata(t *testing.T) {
	doc := `<titlepatch titleid="BCUS98233"><tag name="BCUS98233_T5">
<package version="01.02" size="100" sha1sum="aa" url="http://h/a.pkg">
  <paramsfo><TITLE>Game
Name</TITLE><TITLE_01>Other</TITLE_01></paramsfo>
</package></tag></titlepatch>`

	info, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if info.TitleID != "BCUS98233" {
		t.Errorf("TitleID=%q", info.TitleID)
	}
	if info.TagName != "BCUS98233_T5" {
		t.Errorf("TagName=%q", info.TagName)
	}
	if info.Title() != "Game Name" {
		t.Errorf("Title=%q", info.Title())
	}
	if len(info.Titles) != 2 {
		t.Errorf("Expected 2 titles, got %v", info.Titles)
	}
	if len(info.Packages) != 1 {
		t.Fatalf("Expected 1 package, got %d", len(info.Packages))
	}
}

func TestParse_ChildElementFields(t *testing.T) {
	doc := `<titlepatch titleid="NPUA80638"><tag name="t"><package version="01.03">
<size>4096</size><sha1sum> ABCDEF </sha1sum><url>http://h/child.pkg</url>
</package></tag></titlepatch>`

	entries, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.URL != "http://h/child.pkg" || e.Size != 4096 || e.Checksum != "ABCDEF" || e.Version != "01.03" {
		t.Errorf("Unexpected entry %+v", e)
	}
}

func TestParse_OptionalFields(t *testing.T) {
	doc := wrap(`<package version="01.00" url="http://h/nosum.pkg"/>` +
		`<package version="01.01" size="big" url="http://h/badsize.pkg"/>` +
		`<package version="01.02" url="ftp://h/wrong-scheme.pkg"/>` +
		`<package version="01.03" url="/relative.pkg"/>`)

	entries, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].HasChecksum() {
		t.Error("Expected first entry without checksum")
	}
	if entries[1].Size != 0 {
		t.Errorf("Expected unparsable size to default to 0, got %d", entries[1].Size)
	}
}

func TestParseDocument_ManifestOnlyPackages(t *testing.T) {
	doc := `<titlepatch titleid="CUSA00127"><tag name="t">
<package version="01.05" size="3000000000" digest="ff" manifest_url="http://gs2.ww.prod.dl.playstation.net/m.json"/>
</tag></titlepatch>`

	info, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(info.Packages) != 0 {
		t.Errorf("Expected no direct packages, got %d", len(info.Packages))
	}
	if len(info.Manifests) != 1 || info.Manifests[0].ManifestURL == "" {
		t.Fatalf("Expected one manifest reference, got %+v", info.Manifests)
	}
	if info.Manifests[0].Version != "01.05" {
		t.Errorf("Version=%q", info.Manifests[0].Version)
	}
}

func TestParseDocument_PackageKeepsManifestURL(t *testing.T) {
	doc := `<titlepatch titleid="CUSA00127"><tag name="t">
<package version="01.05" size="10" url="http://gs2.ww.prod.dl.playstation.net/a.pkg" manifest_url="http://gs2.ww.prod.dl.playstation.net/a.json"/>
</tag></titlepatch>`

	info, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(info.Packages) != 1 || len(info.Manifests) != 0 {
		t.Fatalf("Expected one package and no manifest reference, got %d and %d", len(info.Packages), len(info.Manifests))
	}
	if info.Packages[0].ManifestURL != "http://gs2.ww.prod.dl.playstation.net/a.json" {
		t.Errorf("ManifestURL=%q", info.Packages[0].ManifestURL)
	}
}

func TestParseDocument_RecordsDocumentPosition(t *testing.T) {
	doc := `<titlepatch titleid="CUSA00127"><tag name="t">
<package version="01.00" url="http://gs2.ww.prod.dl.playstation.net/a.pkg"/>
<package version="01.01" manifest_url="http://gs2.ww.prod.dl.playstation.net/b.json"/>
<package version="01.02" url="not a url"/>
<package version="01.03" url="http://gs2.ww.prod.dl.playstation.net/c.pkg"/>
</tag></titlepatch>`

	info, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(info.Packages) != 2 || len(info.Manifests) != 1 {
		t.Fatalf("Expected 2 packages and 1 manifest reference, got %d and %d", len(info.Packages), len(info.Manifests))
	}
	if info.Packages[0].Index != 1 || info.Packages[1].Index != 4 {
		t.Errorf("Expected package positions 1 and 4, got %d and %d", info.Packages[0].Index, info.Packages[1].Index)
	}
	if info.Manifests[0].Index != 2 {
		t.Errorf("Expected manifest position 2, got %d", info.Manifests[0].Index)
	}
}
