// Package registry tracks ingested videos: their on-disk location,
// readiness, and the per-video cache of remote artifact handles.
package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// restoreExts are the filename candidates probed when an unknown id is
// looked up after a process restart.
var restoreExts = []string{".mp4", ".mkv"}

// Entry is a snapshot of one registered video. Mutating it does not
// affect the registry.
type Entry struct {
	ID     string
	Path   string
	Status Status
	Err    string
}

type record struct {
	path      string
	status    Status
	errMsg    string
	artifacts map[string]string // cache key -> remote handle
}

// Registry is the process-wide video state. All reads and writes happen
// under one mutex; it is never held across I/O except the restore stat
// calls, which must themselves be atomic with the map insertion.
type Registry struct {
	mu      sync.Mutex
	dataDir string
	videos  map[string]*record
	log     *slog.Logger
}

func New(dataDir string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{dataDir: dataDir, videos: make(map[string]*record), log: log}
}

// FilePath returns the canonical storage path for a video id and
// extension.
func (r *Registry) FilePath(id, ext string) string {
	return filepath.Join(r.dataDir, "video_"+id+ext)
}

// Register inserts or replaces an entry.
func (r *Registry) Register(id, path string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[id] = &record{path: path, status: status, artifacts: make(map[string]string)}
}

// Get returns the entry for id, reconstructing it from disk when the
// in-memory state was lost to a restart. Restore can only rebuild a
// ready entry from the stored file: processing/error states and cached
// artifact handles existed only in memory and are gone for good.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.videos[id]
	if rec == nil {
		rec = r.restoreLocked(id)
	}
	if rec == nil {
		return Entry{}, apperr.New(apperr.NotFound, "video %s not found", id)
	}
	return Entry{ID: id, Path: rec.path, Status: rec.status, Err: rec.errMsg}, nil
}

// Ready returns the entry for id, failing with NotReady unless its
// status is ready.
func (r *Registry) Ready(id string) (Entry, error) {
	e, err := r.Get(id)
	if err != nil {
		return Entry{}, err
	}
	if e.Status != StatusReady {
		msg := e.Err
		if msg == "" {
			msg = "video is not ready"
		}
		return Entry{}, apperr.New(apperr.NotReady, "%s", msg)
	}
	return e, nil
}

func (r *Registry) restoreLocked(id string) *record {
	for _, ext := range restoreExts {
		path := r.FilePath(id, ext)
		st, err := os.Stat(path)
		if err != nil || st.IsDir() || st.Size() == 0 {
			continue
		}
		rec := &record{path: path, status: StatusReady, artifacts: make(map[string]string)}
		r.videos[id] = rec
		r.log.Info("restored video entry from disk", "video_id", id, "path", path)
		return rec
	}
	return nil
}

// SetStatus updates status and error text for an existing entry;
// unknown ids are ignored (the ingestion job may have raced retention).
func (r *Registry) SetStatus(id string, status Status, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.videos[id]
	if rec == nil {
		return
	}
	rec.status = status
	rec.errMsg = errMsg
}

// CacheArtifact records the remote handle for a cache key.
func (r *Registry) CacheArtifact(id, key, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.videos[id]
	if rec == nil {
		return
	}
	rec.artifacts[key] = handle
}

// CachedArtifact returns the remote handle cached for key, if any.
func (r *Registry) CachedArtifact(id, key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.videos[id]
	if rec == nil {
		return "", false
	}
	h, ok := rec.artifacts[key]
	return h, ok
}

// DropArtifact forgets a cached handle. Used when the provider reports
// the handle expired.
func (r *Registry) DropArtifact(id, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.videos[id]; rec != nil {
		delete(rec.artifacts, key)
	}
}

// Remove drops the entry without touching the backing file.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
}
