package store

import "context"

// Overrides is the persisted user layer on top of the builtin paywall list.
// Added holds user-introduced domains, Removed holds builtin domains a user
// has opted out of. The two lists are disjoint.
type Overrides struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Clone returns a deep copy with non-nil slices.
func (o Overrides) Clone() Overrides {
	return Overrides{
		Added:   append(make([]string, 0, len(o.Added)), o.Added...),
		Removed: append(make([]string, 0, len(o.Removed)), o.Removed...),
	}
}

// OverrideStore persists Overrides.
// Save replaces the stored record in full; a failed Save must leave the
// previously stored record intact.
type OverrideStore interface {
	Load(ctx context.Context) (Overrides, error)
	Save(ctx context.Context, o Overrides) error
}
