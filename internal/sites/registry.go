package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/paywallbot/internal/store"
)

var (
	ErrEmptyDomain   = errors.New("empty domain")
	ErrAlreadyListed = errors.New("domain already in the paywall list")
	ErrNotListed     = errors.New("domain not in the paywall list")
	ErrPersist       = errors.New("persist overrides")
)

// MatchMode selects how a registered domain matches a URL hostname.
type MatchMode string

const (
	// MatchSubstring matches any hostname containing the domain. This is the
	// historical behaviour; "nyt.com" also matches "notnyt.com".
	MatchSubstring MatchMode = "substring"

	// MatchSuffix matches the domain itself and its subdomains only.
	MatchSuffix MatchMode = "suffix"
)

// ParseMatchMode maps a config value to a MatchMode. Unknown values fall back to substring.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == MatchSuffix {
		return MatchSuffix
	}
	return MatchSubstring
}

// Change describes what a successful mutation did.
type Change int

const (
	ChangeAdded Change = iota + 1
	ChangeReenabled
	ChangeRemoved
)

// Stats is a point-in-time size summary of the registry.
type Stats struct {
	Effective int
	Builtin   int
	Added     int
	Removed   int
}

// Options configures a Registry.
type Options struct {
	Builtin []string  // nil = package Builtin
	Mode    MatchMode // "" = MatchSubstring
}

// Registry merges the builtin list with persisted user overrides into the
// effective set used for matching. All methods are safe for concurrent use;
// mutations are serialized so each add/remove/rollback sequence is atomic.
type Registry struct {
	mu         sync.RWMutex
	store      store.OverrideStore
	mode       MatchMode
	builtin    []string
	builtinSet map[string]struct{}

	added     []string
	removed   []string
	effective map[string]struct{}
}

// New builds a Registry and loads overrides from st. A load failure is logged
// and the registry starts from the builtin list alone.
func New(ctx context.Context, st store.OverrideStore, opts Options) *Registry {
	builtin := opts.Builtin
	if builtin == nil {
		builtin = Builtin
	}
	mode := opts.Mode
	if mode == "" {
		mode = MatchSubstring
	}

	r := &Registry{
		store:      st,
		mode:       mode,
		builtinSet: make(map[string]struct{}, len(builtin)),
		added:      []string{},
		removed:    []string{},
	}
	for _, d := range builtin {
		d = Normalize(d)
		if d == "" {
			continue
		}
		if _, dup := r.builtinSet[d]; dup {
			continue
		}
		r.builtinSet[d] = struct{}{}
		r.builtin = append(r.builtin, d)
	}

	if err := r.Reload(ctx); err != nil {
		slog.Error("failed to load user sites, using defaults", "error", err)
	}
	r.mu.Lock()
	r.rebuild()
	r.mu.Unlock()
	return r
}

// Reload re-reads overrides from the store. On error the current state is kept.
func (r *Registry) Reload(ctx context.Context) error {
	o, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.added, r.removed = r.sanitize(o)
	r.rebuild()
	return nil
}

// sanitize normalizes loaded overrides and restores the list invariants:
// removed only holds builtin domains, added never holds a builtin or removed domain.
func (r *Registry) sanitize(o store.Overrides) (added, removed []string) {
	removed = []string{}
	removedSet := make(map[string]struct{})
	for _, d := range o.Removed {
		d = Normalize(d)
		if _, ok := r.builtinSet[d]; !ok {
			continue
		}
		if _, dup := removedSet[d]; dup {
			continue
		}
		removedSet[d] = struct{}{}
		removed = append(removed, d)
	}

	added = []string{}
	addedSet := make(map[string]struct{})
	for _, d := range o.Added {
		d = Normalize(d)
		if d == "" {
			continue
		}
		if _, ok := r.builtinSet[d]; ok {
			continue
		}
		if _, ok := removedSet[d]; ok {
			continue
		}
		if _, dup := addedSet[d]; dup {
			continue
		}
		addedSet[d] = struct{}{}
		added = append(added, d)
	}
	return added, removed
}

// rebuild recomputes (builtin ∪ added) − removed. Caller holds mu.
func (r *Registry) rebuild() {
	eff := make(map[string]struct{}, len(r.builtin)+len(r.added))
	for _, d := range r.builtin {
		eff[d] = struct{}{}
	}
	for _, d := range r.added {
		eff[d] = struct{}{}
	}
	for _, d := range r.removed {
		delete(eff, d)
	}
	r.effective = eff
}

// persist writes the candidate overrides. Caller holds mu and only commits the
// candidate into memory after persist succeeds.
func (r *Registry) persist(ctx context.Context, added, removed []string) error {
	if err := r.store.Save(ctx, store.Overrides{Added: added, Removed: removed}); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Add puts domain on the effective list. A builtin domain that was removed
// earlier is re-enabled instead of being recorded as a user addition.
func (r *Registry) Add(ctx context.Context, domain string) (Change, error) {
	d := Normalize(domain)
	if d == "" {
		return 0, ErrEmptyDomain
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.removed, d) {
		removed := without(r.removed, d)
		if err := r.persist(ctx, r.added, removed); err != nil {
			return 0, err
		}
		r.removed = removed
		r.rebuild()
		return ChangeReenabled, nil
	}

	if _, ok := r.effective[d]; ok {
		return 0, ErrAlreadyListed
	}

	added := append(slices.Clone(r.added), d)
	if err := r.persist(ctx, added, r.removed); err != nil {
		return 0, err
	}
	r.added = added
	r.rebuild()
	return ChangeAdded, nil
}

// Remove takes domain off the effective list. Builtin domains are recorded in
// the removed overrides so they stay excluded after a restart.
func (r *Registry) Remove(ctx context.Context, domain string) (Change, error) {
	d := Normalize(domain)
	if d == "" {
		return 0, ErrEmptyDomain
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.effective[d]; !ok {
		return 0, ErrNotListed
	}

	added := without(r.added, d)
	removed := r.removed
	if _, builtin := r.builtinSet[d]; builtin && !slices.Contains(removed, d) {
		removed = append(slices.Clone(removed), d)
	}

	if err := r.persist(ctx, added, removed); err != nil {
		return 0, err
	}
	r.added = added
	r.removed = removed
	r.rebuild()
	return ChangeRemoved, nil
}

// List returns the effective set sorted lexicographically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.effective))
	for d := range r.effective {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether hostname matches any domain on the effective list.
func (r *Registry) Contains(hostname string) bool {
	host := CanonicalHost(hostname)
	if host == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.mode == MatchSuffix {
		for {
			if _, ok := r.effective[host]; ok {
				return true
			}
			i := strings.IndexByte(host, '.')
			if i < 0 {
				return false
			}
			host = host[i+1:]
		}
	}

	for d := range r.effective {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// IsBuiltin reports whether domain is part of the shipped list.
func (r *Registry) IsBuiltin(domain string) bool {
	_, ok := r.builtinSet[Normalize(domain)]
	return ok
}

// Stats returns current list sizes.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Effective: len(r.effective),
		Builtin:   len(r.builtin),
		Added:     len(r.added),
		Removed:   len(r.removed),
	}
}

func without(list []string, d string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != d {
			out = append(out, v)
		}
	}
	return out
}
