package patterns

import (
	"sync"
	"sync/atomic"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

// Snapshot is an immutable view of the active selection. Callers must not
// mutate Sets.
type Snapshot struct {
	Selected []string
	Sets     map[string]models.PatternSet
}

// Registry owns the active pattern selection and its loaded sets.
type Registry struct {
	store   *Store
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes reloads
	logger  zerolog.Logger
}

// NewRegistry creates a registry with nothing selected
func NewRegistry(store *Store, logger zerolog.Logger) *Registry {
	r := &Registry{
		store:  store,
		logger: logger.With().Str("component", "PatternRegistry").Logger(),
	}
	r.current.Store(&Snapshot{Selected: []string{}, Sets: map[string]models.PatternSet{}})
	return r
}

// Snapshot returns the current selection; safe for concurrent use.
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// Select replaces the selection and reloads its sets. An empty selection
// activates no sets.
func (r *Registry) Select(names []string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(dedupe(names))
}

// Reload re-reads the files of the current selection from disk.
func (r *Registry) Reload() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(r.current.Load().Selected)
}

func (r *Registry) load(selected []string) (Snapshot, error) {
	sets := map[string]models.PatternSet{}
	if len(selected) > 0 {
		loaded, err := r.store.Load(selected)
		if err != nil {
			return r.Snapshot(), err
		}
		sets = loaded
	}

	snap := &Snapshot{Selected: selected, Sets: sets}
	r.current.Store(snap)
	r.logger.Info().Strs("selected", selected).Int("active_sets", len(sets)).Msg("Pattern selection loaded")
	return *snap, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
