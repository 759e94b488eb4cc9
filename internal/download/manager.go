// Package download makes the bytes behind catalog entries available on
// local disk: verified, resumable, cancellable, and accounted for.
package download

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"mailmind/internal/common/fsutil"
	"mailmind/pkg/types"
)

// PartialSuffix marks an in-progress download sidecar next to the final
// model file. Sidecars survive cancellation and feed resumption.
const PartialSuffix = ".partial"

// defaultChunkBytes sizes the streaming read buffer; bytes are buffered
// before every disk write, never written one at a time.
const defaultChunkBytes = 32 * 1024

// Defaults applied when corresponding Config fields are unset.
var defaultClient = &http.Client{Timeout: 0} // model files are large; no client deadline

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Dir is the models directory holding final and partial files.
	Dir string
	// Catalog is the static list of downloadable models.
	Catalog []types.ModelInfo
	// Client overrides the HTTP client (tests point it at a local server).
	Client *http.Client
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
	// ChunkBytes overrides the streaming buffer size.
	ChunkBytes int

	Logger zerolog.Logger
}

// Manager owns the per-model download state machine:
// NotDownloaded -> Downloading -> Verifying -> Downloaded, with Failed
// reachable from Downloading/Verifying and NotDownloaded restored by
// delete or cancel. Status transitions happen only here.
type Manager struct {
	dir     string
	catalog []types.ModelInfo
	client  *http.Client
	pub     EventPublisher
	chunk   int
	log     zerolog.Logger

	mu      sync.Mutex
	status  map[string]types.DownloadStatus
	cancels map[string]context.CancelFunc
}

// New constructs a Manager from Config, applying defaults for unset fields.
func New(cfg Config) *Manager {
	m := &Manager{
		dir:     cfg.Dir,
		catalog: cfg.Catalog,
		client:  cfg.Client,
		pub:     cfg.Publisher,
		chunk:   cfg.ChunkBytes,
		log:     cfg.Logger,
		status:  make(map[string]types.DownloadStatus),
		cancels: make(map[string]context.CancelFunc),
	}
	if m.client == nil {
		m.client = defaultClient
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.chunk <= 0 {
		m.chunk = defaultChunkBytes
	}
	return m
}

// Dir returns the models directory.
func (m *Manager) Dir() string { return m.dir }

// Catalog returns the static model catalog.
func (m *Manager) Catalog() []types.ModelInfo {
	out := make([]types.ModelInfo, len(m.catalog))
	copy(out, m.catalog)
	return out
}

// AvailableModels reports every catalog entry with its current status.
// When no in-memory status is tracked yet, the disk decides: Downloaded iff
// the final file exists.
func (m *Manager) AvailableModels() []types.ModelEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ModelEntry, 0, len(m.catalog))
	for _, info := range m.catalog {
		st, tracked := m.status[info.ID]
		if !tracked {
			if fsutil.PathExists(m.finalPath(info)) {
				st = types.DownloadStatus{State: types.StateDownloaded, Progress: 1.0}
			} else {
				st = types.DownloadStatus{State: types.StateNotDownloaded}
			}
		}
		out = append(out, types.ModelEntry{Info: info, Status: st})
	}
	return out
}

// Status returns the tracked or disk-derived status for one model id.
func (m *Manager) Status(id string) (types.DownloadStatus, bool) {
	info, ok := m.lookup(id)
	if !ok {
		return types.DownloadStatus{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, tracked := m.status[info.ID]; tracked {
		return st, true
	}
	if fsutil.PathExists(m.finalPath(info)) {
		return types.DownloadStatus{State: types.StateDownloaded, Progress: 1.0}, true
	}
	return types.DownloadStatus{State: types.StateNotDownloaded}, true
}

// DownloadedIDs returns the ids whose final file is on disk, in catalog
// order. The resolver walks this to find a loadable model.
func (m *Manager) DownloadedIDs() []string {
	var ids []string
	for _, info := range m.catalog {
		if fsutil.PathExists(m.finalPath(info)) {
			ids = append(ids, info.ID)
		}
	}
	return ids
}

// ModelPath returns the final on-disk path for a catalog id.
func (m *Manager) ModelPath(id string) (string, error) {
	info, ok := m.lookup(id)
	if !ok {
		return "", ErrModelNotFound(id)
	}
	return m.finalPath(info), nil
}

// Cancel stops an in-flight download for id. The streaming loop observes
// the cancellation at its next chunk boundary; the partial sidecar stays on
// disk for a later resume.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	cancel := m.cancels[id]
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Delete removes the final file and any stray partial sidecar and resets
// the status. No-op when neither exists.
func (m *Manager) Delete(id string) error {
	info, ok := m.lookup(id)
	if !ok {
		return ErrModelNotFound(id)
	}
	m.Cancel(id)
	final := m.finalPath(info)
	if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(final + PartialSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.setStatus(info.ID, types.DownloadStatus{State: types.StateNotDownloaded})
	m.pub.Publish(Event{Name: "model_deleted", ModelID: info.ID, Fields: map[string]any{}})
	m.log.Info().Str("model", info.ID).Msg("model deleted")
	return nil
}

// StorageUsage returns the byte total of everything under the models
// directory, partial sidecars included.
func (m *Manager) StorageUsage() (int64, error) {
	return fsutil.DirSize(m.dir)
}

func (m *Manager) lookup(id string) (types.ModelInfo, bool) {
	for _, info := range m.catalog {
		if info.ID == id {
			return info, true
		}
	}
	return types.ModelInfo{}, false
}

func (m *Manager) finalPath(info types.ModelInfo) string {
	return filepath.Join(m.dir, info.Filename)
}

func (m *Manager) setStatus(id string, st types.DownloadStatus) {
	m.mu.Lock()
	m.status[id] = st
	m.mu.Unlock()
}
