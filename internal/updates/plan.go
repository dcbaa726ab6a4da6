package updates

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/platform"
)

// Dedupe drops entries whose URL was already seen, keeping the first.
func Dedupe(entries []model.PackageEntry) []model.PackageEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]model.PackageEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		out = append(out, e)
	}
	return out
}

// SelectVersions keeps the entries whose version is listed. No versions
// selects everything.
func SelectVersions(entries []model.PackageEntry, versions ...string) []model.PackageEntry {
	if len(versions) == 0 {
		return slices.Clone(entries)
	}
	wanted := make(map[string]bool, len(versions))
	for _, v := range versions {
		wanted[strings.TrimSpace(v)] = true
	}
	var out []model.PackageEntry
	for _, e := range entries {
		if wanted[e.Version] {
			out = append(out, e)
		}
	}
	return out
}

// Plan creates one queued task per entry, each writing to
// dir/<TITLEID> - <title>/<file name of the entry URL>. Colliding file
// names get a numeric suffix so every task owns a distinct destination.
func Plan(info *model.UpdateInfo, entries []model.PackageEntry, dir string) []*model.DownloadTask {
	tasks := make([]*model.DownloadTask, 0, len(entries))
	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		path := platform.PackagePath(dir, info.TitleID, info.Title(), e.FileName())
		ext := filepath.Ext(path)
		dest := path
		for n := 2; used[dest]; n++ {
			dest = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), n, ext)
		}
		used[dest] = true
		tasks = append(tasks, model.NewDownloadTask(e, dest))
	}
	return tasks
}
