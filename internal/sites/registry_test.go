package sites

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nextlevelbuilder/paywallbot/internal/store"
)

// memStore is an in-memory OverrideStore with a switchable write failure.
type memStore struct {
	data    store.Overrides
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (store.Overrides, error) {
	if m.loadErr != nil {
		return store.Overrides{}, m.loadErr
	}
	return m.data.Clone(), nil
}

func (m *memStore) Save(_ context.Context, o store.Overrides) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = o.Clone()
	return nil
}

var testBuiltin = []string{"nytimes.com", "wsj.com", "ft.com"}

func newTestRegistry(t *testing.T, st *memStore) *Registry {
	t.Helper()
	return New(context.Background(), st, Options{Builtin: testBuiltin})
}

func TestRegistry_AddRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	r := newTestRegistry(t, st)

	change, err := r.Add(ctx, "example.com")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if change != ChangeAdded {
		t.Errorf("change = %v, want ChangeAdded", change)
	}
	if !slices.Contains(r.List(), "example.com") {
		t.Fatalf("List() = %v, missing example.com", r.List())
	}
	if !slices.Equal(st.data.Added, []string{"example.com"}) {
		t.Errorf("persisted added = %v", st.data.Added)
	}

	if _, err := r.Remove(ctx, "example.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if slices.Contains(r.List(), "example.com") {
		t.Errorf("List() still contains example.com: %v", r.List())
	}
	if len(st.data.Added) != 0 || len(st.data.Removed) != 0 {
		t.Errorf("persisted overrides = %+v, want empty", st.data)
	}
}

func TestRegistry_AddTwice(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	r := newTestRegistry(t, st)

	if _, err := r.Add(ctx, "example.com"); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	before := r.List()
	saves := st.saves

	_, err := r.Add(ctx, "WWW.example.com")
	if !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("second Add err = %v, want ErrAlreadyListed", err)
	}
	if !slices.Equal(r.List(), before) {
		t.Errorf("List changed: %v -> %v", before, r.List())
	}
	if st.saves != saves {
		t.Errorf("second Add persisted")
	}
}

func TestRegistry_AddBuiltinAlreadyListed(t *testing.T) {
	r := newTestRegistry(t, &memStore{})
	if _, err := r.Add(context.Background(), "nytimes.com"); !errors.Is(err, ErrAlreadyListed) {
		t.Errorf("err = %v, want ErrAlreadyListed", err)
	}
}

func TestRegistry_RestoreBuiltin(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	r := newTestRegistry(t, st)

	if _, err := r.Remove(ctx, "nytimes.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if slices.Contains(r.List(), "nytimes.com") {
		t.Fatal("nytimes.com still listed after remove")
	}
	if !slices.Equal(st.data.Removed, []string{"nytimes.com"}) {
		t.Errorf("persisted removed = %v", st.data.Removed)
	}

	change, err := r.Add(ctx, "nytimes.com")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if change != ChangeReenabled {
		t.Errorf("change = %v, want ChangeReenabled", change)
	}
	if !slices.Contains(r.List(), "nytimes.com") {
		t.Error("nytimes.com not listed after re-enable")
	}
	if len(st.data.Added) != 0 || len(st.data.Removed) != 0 {
		t.Errorf("persisted overrides = %+v, want empty", st.data)
	}
}

func TestRegistry_RemoveNotListed(t *testing.T) {
	st := &memStore{}
	r := newTestRegistry(t, st)
	if _, err := r.Remove(context.Background(), "example.org"); !errors.Is(err, ErrNotListed) {
		t.Errorf("err = %v, want ErrNotListed", err)
	}
	if st.saves != 0 {
		t.Errorf("saves = %d, want 0", st.saves)
	}
}

func TestRegistry_EmptyDomain(t *testing.T) {
	r := newTestRegistry(t, &memStore{})
	if _, err := r.Add(context.Background(), "www."); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("Add err = %v, want ErrEmptyDomain", err)
	}
	if _, err := r.Remove(context.Background(), " "); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("Remove err = %v, want ErrEmptyDomain", err)
	}
}

func TestRegistry_RollbackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	writeErr := errors.New("disk full")

	tests := []struct {
		name string
		seed store.Overrides
		op   func(r *Registry) error
	}{
		{
			name: "add new domain",
			op: func(r *Registry) error {
				_, err := r.Add(ctx, "example.com")
				return err
			},
		},
		{
			name: "re-enable builtin",
			seed: store.Overrides{Removed: []string{"wsj.com"}},
			op: func(r *Registry) error {
				_, err := r.Add(ctx, "wsj.com")
				return err
			},
		},
		{
			name: "remove builtin",
			op: func(r *Registry) error {
				_, err := r.Remove(ctx, "ft.com")
				return err
			},
		},
		{
			name: "remove user-added",
			seed: store.Overrides{Added: []string{"example.com"}},
			op: func(r *Registry) error {
				_, err := r.Remove(ctx, "example.com")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &memStore{data: tt.seed}
			r := newTestRegistry(t, st)
			before := r.List()
			beforeStats := r.Stats()

			st.saveErr = writeErr
			err := tt.op(r)
			if !errors.Is(err, ErrPersist) || !errors.Is(err, writeErr) {
				t.Fatalf("err = %v, want ErrPersist wrapping write error", err)
			}
			if !slices.Equal(r.List(), before) {
				t.Errorf("List after failure = %v, want %v", r.List(), before)
			}
			if r.Stats() != beforeStats {
				t.Errorf("Stats after failure = %+v, want %+v", r.Stats(), beforeStats)
			}

			// The registry keeps working once the store recovers.
			st.saveErr = nil
			if err := tt.op(r); err != nil {
				t.Errorf("retry after recovery: %v", err)
			}
		})
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, &memStore{})
	for _, d := range []string{"zeit.de", "abc.net.au", "example.com"} {
		if _, err := r.Add(ctx, d); err != nil {
			t.Fatalf("Add(%s): %v", d, err)
		}
	}
	want := []string{"abc.net.au", "example.com", "ft.com", "nytimes.com", "wsj.com", "zeit.de"}
	if got := r.List(); !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestRegistry_ContainsSubstring(t *testing.T) {
	r := newTestRegistry(t, &memStore{})

	tests := []struct {
		host string
		want bool
	}{
		{"nytimes.com", true},
		{"www.nytimes.com", true},
		{"cooking.nytimes.com", true},
		{"WWW.NYTIMES.COM", true},
		{"notft.com", true}, // substring over-match is kept for compatibility
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.host); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestRegistry_ContainsSuffix(t *testing.T) {
	r := New(context.Background(), &memStore{}, Options{Builtin: testBuiltin, Mode: MatchSuffix})

	tests := []struct {
		host string
		want bool
	}{
		{"nytimes.com", true},
		{"www.nytimes.com", true},
		{"cooking.nytimes.com", true},
		{"notft.com", false},
		{"ft.com.evil.net", false},
		{"com", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.host); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestRegistry_LoadSanitizesOverrides(t *testing.T) {
	st := &memStore{data: store.Overrides{
		Added:   []string{"WWW.Example.com", "example.com", "nytimes.com", "wsj.com", ""},
		Removed: []string{"wsj.com", "not-builtin.org"},
	}}
	r := newTestRegistry(t, st)

	want := []string{"example.com", "ft.com", "nytimes.com"}
	if got := r.List(); !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	stats := r.Stats()
	if stats.Added != 1 || stats.Removed != 1 || stats.Builtin != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRegistry_LoadFailureUsesBuiltin(t *testing.T) {
	r := newTestRegistry(t, &memStore{loadErr: errors.New("permission denied")})
	if got := r.List(); !slices.Equal(got, []string{"ft.com", "nytimes.com", "wsj.com"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestRegistry_ReloadKeepsStateOnError(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	r := newTestRegistry(t, st)
	if _, err := r.Add(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}

	st.loadErr = errors.New("boom")
	if err := r.Reload(ctx); err == nil {
		t.Fatal("Reload: expected error")
	}
	if !slices.Contains(r.List(), "example.com") {
		t.Error("state lost after failed reload")
	}

	st.loadErr = nil
	st.data = store.Overrides{Removed: []string{"nytimes.com"}}
	if err := r.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if got := r.List(); !slices.Equal(got, []string{"ft.com", "wsj.com"}) {
		t.Errorf("List() after reload = %v", got)
	}
}

func TestParseMatchMode(t *testing.T) {
	if ParseMatchMode(" Suffix ") != MatchSuffix {
		t.Error("expected suffix")
	}
	if ParseMatchMode("exact") != MatchSubstring {
		t.Error("unknown mode should fall back to substring")
	}
}
