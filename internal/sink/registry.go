// Package sink manages shared JSON output files. Several tasks may target
// the same destination path; the registry hands each of them the same
// reference-counted handle so exactly one physical file is open per path,
// and the last release finalizes and closes it.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Common errors returned by the registry.
var (
	ErrHandleClosed = errors.New("sink handle is closed")
	ErrNilDocument  = errors.New("document cannot be nil")
)

// resultsFile is the persisted layout of a destination file.
type resultsFile struct {
	Results []json.RawMessage `json:"results"`
}

// Registry is a keyed, reference-counted set of open sink handles. The
// zero value is not usable; construct one with NewRegistry and pass it by
// reference to every task that writes output.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	logger  *slog.Logger
}

// NewRegistry creates an empty sink registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		logger:  logger.With("component", "sink_registry"),
	}
}

// Handle is a shared, reference-counted writer for one destination file.
// All writes through a handle are mutually exclusive; any number of tasks
// may hold the same handle concurrently.
type Handle struct {
	registry    *Registry
	destination string
	refs        int

	mu      sync.Mutex
	file    *os.File
	written int
	closed  bool
}

// Acquire returns the handle for destination, creating it if no task holds
// one yet. On first open any pre-existing `{"results": [...]}` content at
// the path is re-emitted at the head of the new file, so re-running against
// an existing destination appends rather than overwrites. The whole
// lookup-or-create sequence runs under the registry lock so concurrent
// first-acquirers cannot race to open two files for the same path.
func (r *Registry) Acquire(destination string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle, ok := r.handles[destination]; ok {
		handle.refs++
		r.logger.Debug("sink handle shared",
			"destination", destination,
			"refs", handle.refs)
		return handle, nil
	}

	handle, err := r.open(destination)
	if err != nil {
		return nil, err
	}

	handle.refs = 1
	r.handles[destination] = handle
	r.logger.Debug("sink handle opened", "destination", destination)
	return handle, nil
}

// open creates the physical file for destination, merging any prior
// content. Caller holds the registry lock.
func (r *Registry) open(destination string) (*Handle, error) {
	prior, err := readExisting(destination)
	if err != nil {
		return nil, fmt.Errorf("failed to merge existing content of %s: %w", destination, err)
	}

	if dir := filepath.Dir(destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory for %s: %w", destination, err)
		}
	}

	file, err := os.Create(destination)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink %s: %w", destination, err)
	}

	handle := &Handle{
		registry:    r,
		destination: destination,
		file:        file,
	}

	if _, err := file.WriteString(`{"results":[`); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to start sink %s: %w", destination, err)
	}

	for _, entry := range prior {
		if err := handle.writeRaw(entry); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to re-emit existing content of %s: %w", destination, err)
		}
	}

	return handle, nil
}

// readExisting returns the raw entries of a prior results file, or nil when
// the file is absent or empty. Entries are preserved byte-for-byte, so the
// registry does not need to know which document kind wrote them.
func readExisting(destination string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(destination)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var prior resultsFile
	if err := json.Unmarshal(data, &prior); err != nil {
		return nil, err
	}
	return prior.Results, nil
}

// Write serializes one document through the handle. The document is
// marshaled before the handle lock is taken, and emitted in a single file
// write, so concurrent writers never interleave partial documents.
func (h *Handle) Write(document any) error {
	if document == nil {
		return ErrNilDocument
	}

	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to serialize document for %s: %w", h.destination, err)
	}
	return h.writeRaw(data)
}

func (h *Handle) writeRaw(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}

	buf := make([]byte, 0, len(data)+1)
	if h.written > 0 {
		buf = append(buf, ',')
	}
	buf = append(buf, data...)

	if _, err := h.file.Write(buf); err != nil {
		return fmt.Errorf("failed to write document to %s: %w", h.destination, err)
	}
	h.written++
	return nil
}

// Destination reports the path this handle writes to.
func (h *Handle) Destination() string {
	return h.destination
}

// Release drops one reference. The final release closes the JSON wrapper,
// flushes, closes the file, and removes the registry entry. A close failure
// is returned to the caller but the reference is gone either way.
//
// The finalize runs before the registry entry is dropped, still under the
// registry lock: a concurrent Acquire of the same destination must not
// truncate the file while the wrapper is being written.
func (h *Handle) Release() error {
	r := h.registry

	r.mu.Lock()
	h.refs--
	if h.refs > 0 {
		remaining := h.refs
		r.mu.Unlock()
		r.logger.Debug("sink handle released",
			"destination", h.destination,
			"refs", remaining)
		return nil
	}

	err := h.finalize()
	delete(r.handles, h.destination)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.logger.Debug("sink handle closed", "destination", h.destination)
	return nil
}

// finalize closes the JSON wrapper and the file. Caller holds the registry
// lock.
func (h *Handle) finalize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	h.closed = true

	if _, err := h.file.WriteString(`]}`); err != nil {
		_ = h.file.Close()
		return fmt.Errorf("failed to finalize sink %s: %w", h.destination, err)
	}
	if err := h.file.Sync(); err != nil {
		_ = h.file.Close()
		return fmt.Errorf("failed to flush sink %s: %w", h.destination, err)
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("failed to close sink %s: %w", h.destination, err)
	}
	return nil
}

// Open reports how many handles the registry currently tracks. Intended
// for observability and tests.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
