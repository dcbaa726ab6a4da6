package model

import "testing"

func TestPackageEntry_FileName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"http://b0.ww.np.dl.playstation.net/tppkg/np/BCUS98148/BCUS98148_T3/a/UP9000-BCUS98148_00-A-V0113-PE.pkg", "UP9000-BCUS98148_00-A-V0113-PE.pkg"},
		{"http://example.com/", ""},
		{"http://example.com", ""},
		{"::bad", ""},
	}

	for _, test := range tests {
		entry := PackageEntry{URL: test.url}
		if got := entry.FileName(); got != test.expected {
			t.Errorf("FileName(%q) = %q, expected %q", test.url, got, test.expected)
		}
	}
}

func TestIsDownloadURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{"http://b0.ww.np.dl.playstation.net/a.pkg", true},
		{"https://gs2.ww.prod.dl.playstation.net/a.json", true},
		{"", false},
		{"not a url", false},
		{"ftp://example.com/a.pkg", false},
		{"http:///a.pkg", false},
	}

	for _, test := range tests {
		if got := IsDownloadURL(test.raw); got != test.expected {
			t.Errorf("IsDownloadURL(%q) = %v, expected %v", test.raw, got, test.expected)
		}
	}
}

func TestUpdateInfo_Helpers(t *testing.T) {
	info := &UpdateInfo{}
	if info.Title() != "" || info.HasUpdates() || info.AllParts() {
		t.Error("Expected empty info helpers to report nothing")
	}

	info.Titles = []string{"LittleBigPlanet"}
	info.Packages = []PackageEntry{
		{Version: "01.00", Size: 10, PartNumber: 1},
		{Version: "01.00", Size: 20, PartNumber: 2},
	}
	if info.Title() != "LittleBigPlanet" {
		t.Errorf("Expected title 'LittleBigPlanet', got '%s'", info.Title())
	}
	if info.TotalSize() != 30 {
		t.Errorf("Expected total size 30, got %d", info.TotalSize())
	}
	if !info.AllParts() {
		t.Error("Expected AllParts to be true")
	}
	if info.Packages[1].ID() != "01.00 - Part 2" {
		t.Errorf("Unexpected ID: %s", info.Packages[1].ID())
	}
}
