package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnforceRetention keeps at most maxFiles source videos on disk,
// deleting the oldest by modification time. The registry entry is
// removed before the file so no entry ever references a deleted file.
// Per-file failures are logged and skipped; re-running when already
// within budget is a no-op.
func (r *Registry) EnforceRetention(maxFiles int) {
	if maxFiles <= 0 {
		return
	}

	type stored struct {
		id    string
		path  string
		mtime int64
	}

	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		r.log.Warn("retention: cannot list data dir", "dir", r.dataDir, "error", err)
		return
	}

	var files []stored
	for _, de := range entries {
		id, ok := videoIDFromName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, stored{id: id, path: filepath.Join(r.dataDir, de.Name()), mtime: info.ModTime().UnixNano()})
	}
	if len(files) <= maxFiles {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })

	for _, f := range files[:len(files)-maxFiles] {
		r.Remove(f.id)
		if err := os.Remove(f.path); err != nil {
			r.log.Warn("retention: failed to delete video", "path", f.path, "error", err)
			continue
		}
		r.log.Info("retention: evicted video", "video_id", f.id, "path", f.path)
	}
}

// videoIDFromName extracts the id from a "video_{id}.{ext}" filename.
func videoIDFromName(name string) (string, bool) {
	base := strings.TrimPrefix(name, "video_")
	if base == name {
		return "", false
	}
	ext := filepath.Ext(base)
	ok := false
	for _, e := range restoreExts {
		if ext == e {
			ok = true
			break
		}
	}
	if !ok {
		return "", false
	}
	id := strings.TrimSuffix(base, ext)
	return id, id != ""
}
