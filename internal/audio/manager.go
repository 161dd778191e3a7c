package audio

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliamunaev/async-tracker/internal/action"
	"github.com/iliamunaev/async-tracker/internal/pool"
	"github.com/iliamunaev/async-tracker/internal/tracker"
)

// Manager loads audio clips by name from a directory and caches them.
// A name is resolved to <dir>/<name><ext>.
type Manager struct {
	dir     string
	ext     string
	timeout time.Duration
	noCache bool
	pool    *pool.Pool
	log     zerolog.Logger

	mu    sync.Mutex
	clips map[string]*LoadAction
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithExt sets the file extension appended to names. Default ".ogg".
func WithExt(ext string) ManagerOption {
	return func(m *Manager) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.ext = ext
	}
}

// WithTimeout bounds each load. Zero means no timeout.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithNoCache disables caching; every load decodes the file again.
func WithNoCache(noCache bool) ManagerOption {
	return func(m *Manager) { m.noCache = noCache }
}

// WithPool limits concurrent decodes.
func WithPool(p *pool.Pool) ManagerOption {
	return func(m *Manager) { m.pool = p }
}

// WithLogger sets the logger handed to load actions.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager rooted at dir.
func NewManager(dir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		dir:   dir,
		ext:   ".ogg",
		log:   zerolog.Nop(),
		clips: make(map[string]*LoadAction),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Path returns the file path for name.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name+m.ext)
}

// Action creates a load action for name without starting it. Unless the
// manager has caching disabled, the action replaces any cached entry.
func (m *Manager) Action(name string) *LoadAction {
	a := NewLoadAction(m.Path(name),
		action.WithName(name),
		action.WithTimeout(m.timeout),
		action.WithPool(m.pool),
		action.WithLogger(m.log),
	)
	if !m.noCache {
		m.mu.Lock()
		m.clips[name] = a
		m.mu.Unlock()
	}
	return a
}

// Get returns the clip for name, loading it if it is not cached or not
// started yet, and blocks until it is decoded or ctx is done.
func (m *Manager) Get(ctx context.Context, name string) (*Clip, error) {
	m.mu.Lock()
	a, ok := m.clips[name]
	m.mu.Unlock()

	if !ok {
		a = m.Action(name)
	}
	// An entry cached by Action may not have been started yet.
	a.Start()
	if err := a.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			m.forget(name, a)
		}
		return nil, err
	}
	return a.Clip(), nil
}

// forget drops a failed load so the next Get retries it.
func (m *Manager) forget(name string, a *LoadAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clips[name] == a {
		delete(m.clips, name)
	}
}

// Load starts one action per name and returns a tracker over them.
// Register tracker callbacks with LoadInto if they must not miss fast loads;
// the returned tracker can always be waited on.
func (m *Manager) Load(names ...string) *tracker.Tracker[*LoadAction] {
	tr := tracker.New[*LoadAction](tracker.WithLogger(m.log))
	return m.LoadInto(tr, names...)
}

// LoadInto starts one action per name on tr. Each call decodes the files
// again and replaces cached entries.
func (m *Manager) LoadInto(tr *tracker.Tracker[*LoadAction], names ...string) *tracker.Tracker[*LoadAction] {
	actions := make([]*LoadAction, 0, len(names))
	for _, name := range names {
		actions = append(actions, m.Action(name))
	}
	return tr.AddActions(actions...)
}

// ForEach calls fn for every cached clip that finished loading, in name order.
func (m *Manager) ForEach(fn func(name string, clip *Clip)) {
	m.mu.Lock()
	snapshot := maps.Clone(m.clips)
	m.mu.Unlock()

	for _, name := range slices.Sorted(maps.Keys(snapshot)) {
		if clip := snapshot[name].Clip(); clip != nil {
			fn(name, clip)
		}
	}
}

// Close closes every cached clip and empties the cache.
func (m *Manager) Close() error {
	m.mu.Lock()
	clips := m.clips
	m.clips = make(map[string]*LoadAction)
	m.mu.Unlock()

	var errs []error
	for _, a := range clips {
		if clip := a.Clip(); clip != nil {
			errs = append(errs, clip.Close())
		}
	}
	return errors.Join(errs...)
}
