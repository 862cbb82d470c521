// Package workspace manages the per-execution scratch directories shared
// with the sandbox.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Manager creates workspaces under a root directory and keeps track of the
// live ones
type Manager struct {
	root   string
	live   *xsync.MapOf[string, *Workspace]
	logger *zap.Logger
}

// Workspace is an exclusive scratch directory of one execution
type Workspace struct {
	ID        string
	RequestID string

	dir     string
	manager *Manager
	once    sync.Once
	err     error
}

// NewManager creates the root directory when missing
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		root = filepath.Join(os.TempDir(), "arena-judge")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Manager{
		root:   abs,
		live:   xsync.NewMapOf[string, *Workspace](),
		logger: logger,
	}, nil
}

// Root returns the absolute root directory
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new unique directory. The name combines a timestamp and
// a random component so concurrent executions never collide.
func (m *Manager) Acquire(requestID string) (*Workspace, error) {
	id := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o777); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	// container users may differ from the host user
	if err := os.Chmod(dir, 0o777); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to chmod workspace: %w", err)
	}
	w := &Workspace{ID: id, RequestID: requestID, dir: dir, manager: m}
	m.live.Store(id, w)
	return w, nil
}

// Live returns the number of workspaces not yet released
func (m *Manager) Live() int {
	return m.live.Size()
}

// Shutdown releases every live workspace
func (m *Manager) Shutdown() error {
	var errs []error
	m.live.Range(func(id string, w *Workspace) bool {
		m.logger.Warn("releasing leftover workspace", zap.String("id", id), zap.String("requestId", w.RequestID))
		if err := w.Release(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// Path returns the host directory of the workspace
func (w *Workspace) Path() string {
	return w.dir
}

// WriteFile writes a file into the workspace. The name must stay inside.
func (w *Workspace) WriteFile(name string, content []byte) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("invalid file name %q", name)
	}
	p := filepath.Join(w.dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o666)
}

// List returns the sorted names of the regular files in the workspace
func (w *Workspace) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(names)
	return names, err
}

// Release removes the directory and everything in it. It is safe to call
// more than once.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.manager.live.Delete(w.ID)
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("failed to remove workspace %s: %w", w.ID, err)
			w.manager.logger.Error("workspace cleanup failed", zap.String("id", w.ID), zap.Error(err))
		}
	})
	return w.err
}
